// Package faketransport 提供进程内可编排的 Transport 测试替身
//
// 默认行为：Connect 立即成功，所有请求立即得到成功响应。
// 通过 SetConnectFunc / Handle / Hold 注入自定义行为，
// 通过 Push / Drop 模拟服务器推送与断线。
//
//	tr := faketransport.New()
//	tr.Hold(types.OpVerifyRequest)
//	// ... 触发请求
//	req := tr.WaitHeld(t, types.OpVerifyRequest)
//	tr.Respond(req.ID, &types.Response{OK: true})
package faketransport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ErrDropped 模拟断线时挂起请求收到的错误
var ErrDropped = errors.New("faketransport: connection dropped")

// HandlerFunc 请求处理函数
type HandlerFunc func(req *types.Request) *types.Response

type held struct {
	req *types.Request
	cb  pkgif.ResponseHandler
}

// Transport 可编排的传输层
type Transport struct {
	mu sync.Mutex

	connectFn func(ctx context.Context, hello types.Hello) error

	connected bool
	handlers  map[types.Op]HandlerFunc
	holdOps   map[types.Op]bool
	held      []held
	onPush    func(*types.Push)
	onClosed  func(error)

	// 调用记录
	hellos   []types.Hello
	requests []*types.Request
	closes   int
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建传输层
func New() *Transport {
	return &Transport{
		handlers: make(map[types.Op]HandlerFunc),
		holdOps:  make(map[types.Op]bool),
	}
}

// ============================================================================
//                              Transport 接口
// ============================================================================

// Connect 实现 Transport
func (t *Transport) Connect(ctx context.Context, hello types.Hello) error {
	t.mu.Lock()
	t.hellos = append(t.hellos, hello)
	fn := t.connectFn
	t.mu.Unlock()

	// 自定义函数的返回值即握手结果，忽略 ctx 的函数可模拟取消后才完成的握手
	if fn != nil {
		if err := fn(ctx, hello); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

// Send 实现 Transport
func (t *Transport) Send(req *types.Request, cb pkgif.ResponseHandler) {
	t.mu.Lock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	t.requests = append(t.requests, req)
	if !t.connected {
		t.mu.Unlock()
		cb(nil, types.ErrNotConnected.WithOp(string(req.Op), nil))
		return
	}
	if t.holdOps[req.Op] {
		t.held = append(t.held, held{req: req, cb: cb})
		t.mu.Unlock()
		return
	}
	h := t.handlers[req.Op]
	t.mu.Unlock()

	var resp *types.Response
	if h != nil {
		resp = h(req)
	}
	if resp == nil {
		resp = &types.Response{OK: true}
	}
	resp.ID = req.ID
	cb(resp, nil)
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

// Close 实现 Transport，不触发 OnClosed
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closes++
	pending := t.disconnectLocked()
	t.mu.Unlock()

	failAll(pending, types.ErrConnectionFailed.WithOp("close", ErrDropped))
	return nil
}

// ============================================================================
//                              编排
// ============================================================================

// SetConnectFunc 覆盖 Connect 行为，返回值即握手结果（即使 ctx 已取消），nil 恢复默认
func (t *Transport) SetConnectFunc(fn func(ctx context.Context, hello types.Hello) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectFn = fn
}

// Handle 为操作设置响应函数
func (t *Transport) Handle(op types.Op, fn HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[op] = fn
}

// Hold 挂起该操作的请求，直到 Respond 或断线
func (t *Transport) Hold(op types.Op) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.holdOps[op] = true
}

// Release 取消挂起设置，已挂起的请求不受影响
func (t *Transport) Release(op types.Op) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.holdOps, op)
}

// Held 返回指定操作当前挂起的请求
func (t *Transport) Held(op types.Op) []*types.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*types.Request
	for _, h := range t.held {
		if h.req.Op == op {
			out = append(out, h.req)
		}
	}
	return out
}

// WaitHeld 等待指定操作出现挂起请求，返回最早的一个
func (t *Transport) WaitHeld(tb testing.TB, op types.Op) *types.Request {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reqs := t.Held(op); len(reqs) > 0 {
			return reqs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("no held %s request", op)
	return nil
}

// Respond 完成一个挂起请求，返回请求是否存在
func (t *Transport) Respond(id string, resp *types.Response) bool {
	t.mu.Lock()
	var cb pkgif.ResponseHandler
	for i, h := range t.held {
		if h.req.ID == id {
			cb = h.cb
			t.held = append(t.held[:i], t.held[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	if cb == nil {
		return false
	}
	resp.ID = id
	cb(resp, nil)
	return true
}

// RespondOK 以成功响应完成挂起请求，body 为 nil 时不带响应体
func (t *Transport) RespondOK(id string, body any) bool {
	resp := &types.Response{OK: true}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false
		}
		resp.Body = data
	}
	return t.Respond(id, resp)
}

// Push 模拟服务器推送
func (t *Transport) Push(kind string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	t.mu.Lock()
	fn := t.onPush
	t.mu.Unlock()
	if fn != nil {
		fn(&types.Push{Kind: kind, Body: data})
	}
	return nil
}

// Drop 模拟服务器关闭连接，触发 OnClosed
func (t *Transport) Drop(err error) {
	t.mu.Lock()
	wasConnected := t.connected
	pending := t.disconnectLocked()
	fn := t.onClosed
	t.mu.Unlock()

	if wasConnected && fn != nil {
		fn(err)
	}
	failAll(pending, types.ErrConnectionFailed.WithOp("drop", ErrDropped))
}

func (t *Transport) disconnectLocked() []held {
	t.connected = false
	pending := t.held
	t.held = nil
	return pending
}

func failAll(pending []held, err error) {
	for _, h := range pending {
		h.cb(nil, err)
	}
}

// ============================================================================
//                              调用记录
// ============================================================================

// IsConnected 当前是否已连接
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Hellos 返回所有握手信息
func (t *Transport) Hellos() []types.Hello {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.Hello(nil), t.hellos...)
}

// Requests 返回指定操作已发送的请求，op 为空时返回全部
func (t *Transport) Requests(op types.Op) []*types.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*types.Request
	for _, r := range t.requests {
		if op == "" || r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Closes 返回 Close 调用次数
func (t *Transport) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}
