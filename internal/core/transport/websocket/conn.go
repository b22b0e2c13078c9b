package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

type pending struct {
	cb    pkgif.ResponseHandler
	timer *clock.Timer
}

// conn 单个 WebSocket 连接
type conn struct {
	t  *Transport
	ws *websocket.Conn

	// writeMu gorilla 连接只允许一个并发写者，WriteControl 与 Close 除外
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
	done    chan struct{}
}

func newConn(t *Transport, ws *websocket.Conn) *conn {
	return &conn{
		t:       t,
		ws:      ws,
		pending: make(map[string]*pending),
		done:    make(chan struct{}),
	}
}

// ============================================================================
//                              握手
// ============================================================================

// handshake 发送 hello 并等待响应，ctx 取消时关闭底层连接以打断读取
func (c *conn) handshake(ctx context.Context, hello types.Hello) error {
	req, err := types.NewRequest(types.OpHello, hello)
	if err != nil {
		return err
	}
	req.ID = uuid.NewString()

	stop := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			_ = c.ws.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-watcher
	}()

	if err := c.write(Frame{Type: FrameRequest, Request: req}); err != nil {
		return handshakeError(ctx, err)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return handshakeError(ctx, err)
		}
		f, err := DecodeFrame(data)
		if err != nil {
			logger.Debug("握手期间忽略无效帧", "err", err)
			continue
		}
		if f.Type != FrameResponse || f.Response.ID != req.ID {
			logger.Debug("握手期间忽略帧", "type", f.Type)
			continue
		}
		if rerr := f.Response.Err(types.OpHello, types.CodeServerConnection); rerr != nil {
			return rerr
		}
		if ctx.Err() != nil {
			return handshakeError(ctx, ctx.Err())
		}
		return nil
	}
}

func handshakeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return types.ErrConnectionFailed.WithOp(string(types.OpHello), ctx.Err())
	}
	if cause := closeCause(err); cause != nil && types.IsAuthError(cause) {
		return cause
	}
	return types.ErrConnectionFailed.WithOp(string(types.OpHello), err)
}

// ============================================================================
//                              读写
// ============================================================================

func (c *conn) write(f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.t.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) send(req *types.Request, cb pkgif.ResponseHandler) {
	p := &pending{cb: cb}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cb(nil, types.ErrConnectionFailed.WithOp(string(req.Op), ErrConnectionClosed))
		return
	}
	c.pending[req.ID] = p
	if timeout := c.t.cfg.RequestTimeout; timeout > 0 {
		id := req.ID
		p.timer = c.t.clock.AfterFunc(timeout, func() {
			c.complete(id, nil, types.ErrConnectionFailed.WithOp(string(req.Op), ErrRequestTimeout))
		})
	}
	c.mu.Unlock()

	if err := c.write(Frame{Type: FrameRequest, Request: req}); err != nil {
		logger.Debug("写入请求失败", "op", req.Op, "err", err)
		c.complete(req.ID, nil, types.ErrConnectionFailed.WithOp(string(req.Op), err))
	}
}

// complete 完成挂起请求，每个 ID 至多一次
func (c *conn) complete(id string, resp *types.Response, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		if resp != nil {
			logger.Debug("丢弃未知请求的响应", "id", id)
		}
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.cb(resp, err)
}

func (c *conn) failAll(err error) {
	c.mu.Lock()
	c.closed = true
	items := c.pending
	c.pending = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range items {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.cb(nil, err)
	}
}

func (c *conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.t.lost(c, closeCause(err))
			return
		}
		f, err := DecodeFrame(data)
		if err != nil {
			logger.Warn("忽略无效帧", "err", err)
			continue
		}
		switch f.Type {
		case FrameResponse:
			c.complete(f.Response.ID, f.Response, nil)
		case FramePush:
			if fn := c.t.pushHandler(); fn != nil {
				fn(f.Push)
			}
		default:
			logger.Debug("忽略服务器请求帧", "op", f.Request.Op)
		}
	}
}

func (c *conn) pingLoop(interval time.Duration) {
	ticker := c.t.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.t.cfg.WriteTimeout))
			if err != nil {
				logger.Debug("发送 ping 失败", "err", err)
				// 读循环随后发现断线
				_ = c.ws.Close()
				return
			}
		}
	}
}

// close 发送关闭帧后关闭底层连接
//
// 连接可能已被对端或 ping 失败关闭，错误只记录不返回。
func (c *conn) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		logger.Debug("发送关闭帧失败", "err", err)
	}
	if err := c.ws.Close(); err != nil {
		logger.Debug("关闭底层连接失败", "err", err)
	}
}
