package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("transport/websocket")

// 确保实现了接口
var _ pkgif.Transport = (*Transport)(nil)

var (
	// ErrRequestTimeout 请求在超时内未得到响应
	ErrRequestTimeout = errors.New("websocket: request timeout")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("websocket: connection closed")
)

// HeaderVersion 升级请求中携带的客户端版本头
const HeaderVersion = "X-Pushclient-Version"

// Config WebSocket 传输配置
type Config struct {
	// URL 服务器地址（ws:// 或 wss://）
	URL string

	// HandshakeTimeout HTTP 升级超时，hello 握手受 Connect 的 ctx 约束
	HandshakeTimeout time.Duration

	// RequestTimeout 单个请求的响应超时
	RequestTimeout time.Duration

	// PingInterval 保活 ping 间隔，0 表示不发送
	PingInterval time.Duration

	// WriteTimeout 单帧写超时
	WriteTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   15 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// ============================================================================
//                              Transport
// ============================================================================

// Transport WebSocket 传输
//
// 同一时刻至多一个连接。Close 之后可再次 Connect。
type Transport struct {
	cfg    Config
	clock  clock.Clock
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *conn
	onPush   func(push *types.Push)
	onClosed func(err error)
}

// Option 传输选项
type Option func(*Transport)

// WithClock 替换请求超时与 ping 使用的时钟
func WithClock(c clock.Clock) Option {
	return func(t *Transport) {
		t.clock = c
	}
}

// WithDialer 替换拨号器
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

// New 创建传输
func New(cfg Config, opts ...Option) *Transport {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	t := &Transport{
		cfg:   cfg,
		clock: clock.New(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect 实现 Transport
func (t *Transport) Connect(ctx context.Context, hello types.Hello) error {
	// 旧连接静默关闭，不触发 OnClosed
	_ = t.Close()

	header := http.Header{}
	header.Set(HeaderVersion, hello.Version)

	logger.Debug("拨号推送服务器", "url", t.cfg.URL)
	ws, resp, err := t.dialer.DialContext(ctx, t.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return types.ErrAuthRejected.WithOp("dial", fmt.Errorf("upgrade rejected: %s", resp.Status))
		}
		return types.ErrConnectionFailed.WithOp("dial", err)
	}

	c := newConn(t, ws)
	if err := c.handshake(ctx, hello); err != nil {
		_ = ws.Close()
		return err
	}

	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()

	go c.readLoop()
	if t.cfg.PingInterval > 0 {
		go c.pingLoop(t.cfg.PingInterval)
	}
	logger.Info("已连接推送服务器", "url", t.cfg.URL)
	return nil
}

// Send 实现 Transport
func (t *Transport) Send(req *types.Request, cb pkgif.ResponseHandler) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	if c == nil {
		cb(nil, types.ErrNotConnected.WithOp(string(req.Op), nil))
		return
	}
	c.send(req, cb)
}

// OnPush 实现 Transport
func (t *Transport) OnPush(fn func(push *types.Push)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPush = fn
}

// OnClosed 实现 Transport
func (t *Transport) OnClosed(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClosed = fn
}

// Close 实现 Transport
func (t *Transport) Close() error {
	t.mu.Lock()
	c := t.conn
	t.conn = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}
	c.close()
	c.failAll(types.ErrConnectionFailed.WithOp("close", ErrConnectionClosed))
	logger.Debug("已主动关闭连接")
	return nil
}

// Connected 是否存在活动连接
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *Transport) pushHandler() func(push *types.Push) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onPush
}

// lost 读循环发现连接断开
//
// 主动 Close 过的连接不再是当前连接，只需完成挂起请求。
func (t *Transport) lost(c *conn, cause error) {
	t.mu.Lock()
	current := t.conn == c
	if current {
		t.conn = nil
	}
	fn := t.onClosed
	t.mu.Unlock()

	if current {
		logger.Info("连接已断开", "err", cause)
		if fn != nil {
			fn(cause)
		}
	}
	c.failAll(types.ErrConnectionFailed.WithOp("read", ErrConnectionClosed))
}

// closeCause 将读错误映射为 OnClosed 的参数
func closeCause(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return nil
		case websocket.ClosePolicyViolation:
			return types.ErrAuthRejected.WithOp("session", errors.New(ce.Text))
		}
	}
	return types.ErrConnectionFailed.WithOp("read", err)
}
