package pushclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/lifecycle"
	"github.com/dep2p/go-pushclient/internal/core/reachability"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/session"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
)

var logger = log.Logger("pushclient")

const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout Close 的关闭超时
	stopTimeout = 15 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              Client
// ════════════════════════════════════════════════════════════════════════════

// Client 推送客户端
//
// 所有会话操作都是非阻塞的：调用只等待请求被受理，结果通过事件送达。
// Start 之前的调用同样会被受理，连接建立后发出。
type Client struct {
	mu      sync.Mutex
	cfg     *config.Config
	app     *fx.App
	started bool
	closed  bool

	// 以下由 Fx 注入
	session     *session.Manager
	source      pkgif.ReachabilitySource
	engine      engine.InternalEngine
	bus         pkgif.BroadcastBus
	coordinator *lifecycle.Coordinator
	registry    *prometheus.Registry
}

// New 创建客户端但不启动
//
// 存储在此时打开，已持久化的身份立即可查询。
func New(opts ...Option) (*Client, error) {
	o := newOptions()
	if err := o.apply(opts...); err != nil {
		return nil, fmt.Errorf("apply options: %w", err)
	}
	cfg, err := o.toInternalConfig(context.Background())
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	app := buildFxApp(cfg, o, c)
	if err := app.Err(); err != nil {
		logger.Error("构建依赖图失败", "error", err)
		return nil, fmt.Errorf("build client: %w", err)
	}
	c.app = app
	logger.Debug("客户端已创建", "server", cfg.Server.EffectiveURL())
	return c, nil
}

// Start 创建并启动客户端
func Start(ctx context.Context, opts ...Option) (*Client, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Start 启动客户端，开始监控可达性并按需连接
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := c.app.Start(startCtx); err != nil {
		logger.Error("客户端启动失败", "error", err)
		return fmt.Errorf("start client: %w", err)
	}
	c.started = true
	logger.Info("客户端已启动", "server", c.cfg.Server.EffectiveURL())
	return nil
}

// Close 断开连接并释放全部资源
//
// 已排队的事件在 Close 返回前送达。重复调用返回 nil。
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var err error
	if c.started {
		err = multierr.Append(err, c.app.Stop(ctx))
	} else {
		// 未启动时 Fx 不会执行 OnStop，直接关闭已创建的组件
		err = multierr.Append(err, c.session.Stop(ctx))
		err = multierr.Append(err, c.engine.Close())
		c.coordinator.Stop()
	}
	c.started = false

	if err != nil {
		logger.Warn("客户端关闭时出错", "error", err)
		return err
	}
	logger.Info("客户端已关闭")
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期查询
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效配置的副本
func (c *Client) Config() *Config {
	return c.cfg.Clone()
}

// Phase 当前生命周期阶段
func (c *Client) Phase() Phase {
	return c.coordinator.Phase()
}

// WaitConnected 等待与服务器建立首次连接
//
// 客户端关闭后返回 context.Canceled。
func (c *Client) WaitConnected(ctx context.Context) error {
	return c.coordinator.WaitConnected(ctx)
}

// MetricsRegistry 返回客户端指标所在的 Prometheus Registry
func (c *Client) MetricsRegistry() *prometheus.Registry {
	return c.registry
}

// Flush 等待此前产生的事件全部送达处理函数与观察者
func (c *Client) Flush() {
	c.session.Flush()
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接
// ════════════════════════════════════════════════════════════════════════════

// State 当前连接状态
func (c *Client) State() ConnectionState {
	return c.session.State()
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	return c.session.State() == Connected
}

// FailureError 最近一次连接失败的原因
func (c *Client) FailureError() error {
	return c.session.FailureError()
}

// AuthBlocked 服务器拒绝身份后是否已停止自动重连
//
// 重新注册应用后解除。
func (c *Client) AuthBlocked() bool {
	return c.session.AuthBlocked()
}

// Reconnect 立即重连，重置退避
func (c *Client) Reconnect() error {
	return c.session.Reconnect()
}

// OnBackground 应用进入后台，暂停自动重试
func (c *Client) OnBackground() {
	c.session.OnBackground()
}

// OnForeground 应用回到前台，按需重连
func (c *Client) OnForeground() {
	c.session.OnForeground()
}

// ════════════════════════════════════════════════════════════════════════════
//                              可达性
// ════════════════════════════════════════════════════════════════════════════

// Reachability 最后已知的网络可达性
func (c *Client) Reachability() ReachabilityStatus {
	return c.session.Reachability()
}

// UpdateReachability 推送可达性变化
//
// 仅在使用 WithManualReachability 或手动来源配置时可用。
func (c *Client) UpdateReachability(status ReachabilityStatus) error {
	src, ok := c.source.(*reachability.ManualSource)
	if !ok {
		return ErrNotManualReachability
	}
	src.Update(status)
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              注册
// ════════════════════════════════════════════════════════════════════════════

// RegisterApplication 注册应用
//
// 切换到不同应用时清除用户与频道。服务器拒绝身份后须调用此方法恢复自动重连。
func (c *Client) RegisterApplication(appID string, creds Credentials) error {
	return c.session.RegisterApplication(appID, creds)
}

// RegisterUser 注册用户，需先完成应用注册
func (c *Client) RegisterUser(userID string, opts UserOptions) error {
	return c.session.RegisterUser(userID, opts)
}

// RegisterAgain 清除订阅与验证会话后重新注册用户
func (c *Client) RegisterAgain(userID string, opts UserOptions) error {
	return c.session.RegisterAgain(userID, opts)
}

// ResetIdentity 清除本地保存的全部身份
func (c *Client) ResetIdentity() error {
	return c.session.ResetIdentity()
}

// Identity 当前身份快照
func (c *Client) Identity() Identity {
	return c.session.Identity()
}

// ApplicationID 当前应用 ID
func (c *Client) ApplicationID() string {
	return c.session.Identity().ApplicationID
}

// UserID 当前用户 ID
func (c *Client) UserID() string {
	return c.session.UserID()
}

// IsRegistered 应用注册是否已被服务器确认
func (c *Client) IsRegistered() bool {
	return c.session.IsRegistered()
}

// ════════════════════════════════════════════════════════════════════════════
//                              验证
// ════════════════════════════════════════════════════════════════════════════

// RequestVerificationCode 请求向用户下发验证码
//
// media 为空时使用配置的默认媒介。cb 可为 nil。
func (c *Client) RequestVerificationCode(userID, media string, cb Handler) error {
	return c.session.RequestVerificationCode(userID, media, cb)
}

// VerifyUserCode 校验用户输入的验证码
func (c *Client) VerifyUserCode(userID, code string, cb Handler) error {
	return c.session.VerifyUserCode(userID, code, cb)
}

// VerificationSession 返回用户的验证会话
func (c *Client) VerificationSession(userID string) (VerificationSession, bool) {
	return c.session.VerificationSession(userID)
}

// ════════════════════════════════════════════════════════════════════════════
//                              频道
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅频道，离线时排队
func (c *Client) Subscribe(channel string) error {
	return c.session.Subscribe(channel)
}

// Unsubscribe 退订频道，离线时排队
func (c *Client) Unsubscribe(channel string) error {
	return c.session.Unsubscribe(channel)
}

// SyncSubscriptions 从服务器拉取权威的订阅列表
func (c *Client) SyncSubscriptions(cb Handler) error {
	return c.session.SyncSubscriptions(cb)
}

// DeviceSubscriptions 本地缓存的订阅列表
func (c *Client) DeviceSubscriptions() []string {
	return c.session.DeviceSubscriptions()
}

// ════════════════════════════════════════════════════════════════════════════
//                              消息
// ════════════════════════════════════════════════════════════════════════════

// Publish 发布消息，需处于已连接状态
func (c *Client) Publish(msg *Message) error {
	return c.session.Publish(msg)
}

// HandleRemoteNotification 处理系统推送通道送达的通知
func (c *Client) HandleRemoteNotification(raw map[string]any) error {
	return c.session.HandleRemoteNotification(raw)
}

// MarkAsRead 标记消息已读
func (c *Client) MarkAsRead(id string) error {
	return c.session.MarkAsRead(id)
}

// MarkDismissed 标记消息已忽略
func (c *Client) MarkDismissed(id string) error {
	return c.session.MarkDismissed(id)
}

// Message 按 ID 查询消息
func (c *Client) Message(id string) (*Message, bool) {
	return c.session.Message(id)
}

// Messages 已跟踪的全部消息
func (c *Client) Messages() []*Message {
	return c.session.Messages()
}

// DiscardMessage 停止跟踪消息
func (c *Client) DiscardMessage(id string) bool {
	return c.session.DiscardMessage(id)
}

// PendingRequests 等待发出或等待应答的请求数
func (c *Client) PendingRequests() int {
	return c.session.PendingRequests()
}

// ════════════════════════════════════════════════════════════════════════════
//                              设备
// ════════════════════════════════════════════════════════════════════════════

// SetDeviceToken 设置系统推送令牌
func (c *Client) SetDeviceToken(token []byte) error {
	return c.session.SetDeviceToken(token)
}

// RemoveDeviceToken 移除系统推送令牌
func (c *Client) RemoveDeviceToken() error {
	return c.session.RemoveDeviceToken()
}

// ReportCrash 上报崩溃信息
func (c *Client) ReportCrash(info map[string]any) error {
	return c.session.ReportCrash(info)
}
