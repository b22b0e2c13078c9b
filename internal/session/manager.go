package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/connection"
	"github.com/dep2p/go-pushclient/internal/core/fanout"
	"github.com/dep2p/go-pushclient/internal/core/identity"
	"github.com/dep2p/go-pushclient/internal/core/metrics"
	"github.com/dep2p/go-pushclient/internal/core/tracker"
	"github.com/dep2p/go-pushclient/internal/protocol/registration"
	"github.com/dep2p/go-pushclient/internal/protocol/verification"
	"github.com/dep2p/go-pushclient/internal/util/mailbox"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("session")

// Version 握手时上报的客户端版本
const Version = "1.0.0"

// Handler 单次调用的完成回调
type Handler = fanout.Handler

// Options 会话依赖
type Options struct {
	Config    *config.Config
	Transport pkgif.Transport
	Monitor   pkgif.ReachabilityMonitor
	Identity  *identity.Store

	// 以下可选
	Bus     pkgif.BroadcastBus
	Metrics metrics.Reporter
	Clock   clock.Clock
	Rand    *rand.Rand

	// Connected 每次进入已连接状态时通知
	Connected ConnectedNotifier
}

// ConnectedNotifier 已连接通知，在执行器上同步调用，不得阻塞
type ConnectedNotifier interface {
	SetConnected()
}

// attempt 一次连接尝试，cancel 为 nil 表示尚未发起握手
type attempt struct {
	gen    uint64
	cancel context.CancelFunc
}

// ============================================================================
//                              Manager
// ============================================================================

// Manager 会话执行器
type Manager struct {
	cfg       *config.Config
	clock     clock.Clock
	transport pkgif.Transport
	monitor   pkgif.ReachabilityMonitor
	identity  *identity.Store
	metrics   metrics.Reporter
	notifier  ConnectedNotifier

	queue     *mailbox.Mailbox
	events    *fanout.Dispatcher
	machine   *connection.Machine
	backoff   *connection.Backoff
	tracker   *tracker.Tracker
	verify    *verification.Registry
	registrar *registration.Registrar
	outbox    *registration.Outbox

	// 以下字段只在执行器内访问
	reach      types.ReachabilityStatus
	attempt    *attempt
	attemptGen uint64
	dialing    bool
	epoch      uint64
	retryTimer *clock.Timer
	retryGen   uint64
	background bool
	closed     bool

	failureMu   sync.RWMutex
	lastFailure error

	startOnce   sync.Once
	stopOnce    sync.Once
	cancelReach func()
	wg          sync.WaitGroup
}

// New 创建会话执行器
func New(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}
	if opts.Monitor == nil {
		return nil, fmt.Errorf("session: reachability monitor is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("session: identity store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	reporter := opts.Metrics
	if reporter == nil {
		reporter = metrics.Nop{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}

	m := &Manager{
		cfg:       cfg,
		clock:     clk,
		transport: opts.Transport,
		monitor:   opts.Monitor,
		identity:  opts.Identity,
		metrics:   reporter,
		notifier:  opts.Connected,
		queue:     mailbox.New(),
		events:    fanout.New(opts.Bus, reporter),
		machine:   connection.NewMachine(clk),
		backoff:   connection.NewBackoff(cfg.Connection.Backoff, rng),
		tracker:   tracker.New(clk),
		verify:    verification.New(clk),
		registrar: registration.NewRegistrar(),
		outbox:    registration.NewOutbox(),
	}
	// 执行器先于 Start 运行，未接入传输层前的调用同样串行化
	m.queue.Start()
	m.events.Start()
	return m, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 接入传输层与可达性监控并开始处理
func (m *Manager) Start(_ context.Context) error {
	m.startOnce.Do(func() {
		m.transport.OnPush(func(push *types.Push) {
			m.post(func() { m.handlePush(push) })
		})
		m.transport.OnClosed(func(err error) {
			m.post(func() { m.onTransportClosed(err) })
		})

		ch, cancel := m.monitor.Subscribe()
		m.cancelReach = cancel
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for status := range ch {
				status := status
				m.post(func() { m.onReachability(status) })
			}
		}()
		m.post(func() { m.onReachability(m.monitor.Status()) })

		logger.Info("会话已启动", "auto_connect", m.cfg.Connection.AutoConnect)
	})
	return nil
}

// Stop 断开连接并停止处理，已排队的事件仍会送达
func (m *Manager) Stop(_ context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		callErr := m.queue.Call(func() {
			m.closed = true
			m.cancelRetry()
			state := m.machine.State()
			m.abortAttempt()
			if state == types.Connected || state == types.Connecting {
				if cerr := m.transport.Close(); cerr != nil {
					err = cerr
				}
				m.transition(types.Disconnected, types.ReasonShutdown, nil)
			}
		})
		if callErr != nil {
			logger.Debug("停止时执行器已关闭", "err", callErr)
		}
		m.startOnce.Do(func() {})
		if m.cancelReach != nil {
			m.cancelReach()
		}
		m.wg.Wait()
		m.queue.Close()
		m.events.Close()
		logger.Info("会话已停止")
	})
	return err
}

// post 投递到执行器，已关闭时丢弃
func (m *Manager) post(fn func()) {
	if !m.queue.Post(fn) {
		logger.Debug("执行器已关闭，丢弃任务")
	}
}

// do 在执行器内运行守卫闭包并返回其结果
func (m *Manager) do(fn func() error) error {
	var err error
	if callErr := m.queue.Call(func() {
		if m.closed {
			err = types.ErrClosed
			return
		}
		err = fn()
	}); callErr != nil {
		return types.ErrClosed
	}
	return err
}

// ============================================================================
//                              观察者
// ============================================================================

// AddObserver 添加观察者
func (m *Manager) AddObserver(obs any) error {
	return m.events.AddObserver(obs)
}

// RemoveObserver 移除观察者
func (m *Manager) RemoveObserver(obs any) {
	m.events.RemoveObserver(obs)
}

// RemoveAllObservers 移除全部观察者
func (m *Manager) RemoveAllObservers() {
	m.events.RemoveAllObservers()
}

// SetHandler 设置类别处理函数，nil 清除
func (m *Manager) SetHandler(category string, fn Handler) {
	m.events.SetHandler(category, fn)
}

// Flush 等待此前产生的事件全部送达
func (m *Manager) Flush() {
	_ = m.queue.Call(func() {})
	m.events.Flush()
}

func (m *Manager) emit(ev types.Event, cb Handler) {
	m.events.Emit(ev, cb)
}

// ============================================================================
//                              只读查询
// ============================================================================

// State 当前连接状态
func (m *Manager) State() types.ConnectionState {
	return m.machine.State()
}

// Reachability 最后已知的可达性
func (m *Manager) Reachability() types.ReachabilityStatus {
	return m.monitor.Status()
}

// Identity 身份快照
func (m *Manager) Identity() types.Identity {
	return m.identity.Snapshot()
}

// DeviceSubscriptions 本地频道缓存，按订阅顺序
func (m *Manager) DeviceSubscriptions() []string {
	channels := m.identity.Snapshot().Channels
	if channels == nil {
		return []string{}
	}
	return channels
}

// UserID 已确认的用户 ID
func (m *Manager) UserID() string {
	return m.identity.Snapshot().UserID
}

// IsRegistered 应用注册是否已确认
func (m *Manager) IsRegistered() bool {
	return m.identity.Snapshot().IsApplicationRegistered()
}

// FailureError 最近一次注册或连接错误
func (m *Manager) FailureError() error {
	m.failureMu.RLock()
	defer m.failureMu.RUnlock()
	return m.lastFailure
}

func (m *Manager) setFailure(err error) {
	m.failureMu.Lock()
	m.lastFailure = err
	m.failureMu.Unlock()
}

// AuthBlocked 是否因认证拒绝而停止自动重连
func (m *Manager) AuthBlocked() bool {
	return m.machine.AuthBlocked()
}

// VerificationSession 返回用户的验证会话
func (m *Manager) VerificationSession(userID string) (types.VerificationSession, bool) {
	return m.verify.Get(userID)
}

// Message 返回消息副本
func (m *Manager) Message(id string) (*types.Message, bool) {
	return m.tracker.Get(id)
}

// Messages 按记录顺序返回全部消息
func (m *Manager) Messages() []*types.Message {
	return m.tracker.Messages()
}

// DiscardMessage 移除消息记录
func (m *Manager) DiscardMessage(id string) bool {
	return m.tracker.Discard(id)
}

// PendingRequests 离线队列中的请求数
func (m *Manager) PendingRequests() int {
	var n int
	_ = m.queue.Call(func() { n = m.outbox.Len() })
	return n
}
