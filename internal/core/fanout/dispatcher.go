// Package fanout 将内部事件流扇出到三个出口
//
// 每个事件在同一个 goroutine 上依次投递到：
//  1. 按类别的单槽处理函数（后设置者覆盖前者）
//  2. 有序观察者集合（按添加顺序，观察者实现能力接口的任意子集）
//  3. 进程级广播总线（类别名 + 最小载荷）
//
// 最后调用本次请求附带的完成回调（如有）。任一出口 panic 被恢复并记录，
// 不影响其余出口。
package fanout

import (
	"errors"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-pushclient/internal/core/metrics"
	"github.com/dep2p/go-pushclient/internal/util/mailbox"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("core/fanout")

// 出口名称，用于日志与指标
const (
	SinkHandler   = "handler"
	SinkObserver  = "observer"
	SinkBroadcast = "broadcast"
	SinkCallback  = "callback"
)

// ErrNotObserver 对象未实现任何观察者能力接口
var ErrNotObserver = errors.New("fanout: value implements no observer interface")

// Handler 单槽处理函数
type Handler func(ev types.Event)

type observerEntry struct {
	obs     any
	removed atomic.Bool
}

// Dispatcher 事件扇出
type Dispatcher struct {
	queue   *mailbox.Mailbox
	bus     pkgif.BroadcastBus
	metrics metrics.Reporter

	mu        sync.RWMutex
	handlers  map[string]Handler
	observers []*observerEntry
}

// New 创建 Dispatcher，bus 为 nil 时不广播
func New(bus pkgif.BroadcastBus, reporter metrics.Reporter) *Dispatcher {
	if reporter == nil {
		reporter = metrics.Nop{}
	}
	return &Dispatcher{
		queue:    mailbox.New(),
		bus:      bus,
		metrics:  reporter,
		handlers: make(map[string]Handler),
	}
}

// Start 启动投递 goroutine
func (d *Dispatcher) Start() {
	d.queue.Start()
}

// Close 投递完已排队事件后停止
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// Flush 等待此前排队的事件全部投递完成
func (d *Dispatcher) Flush() {
	_ = d.queue.Call(func() {})
}

// ============================================================================
//                              注册
// ============================================================================

// SetHandler 设置类别的单槽处理函数，fn 为 nil 时清除
func (d *Dispatcher) SetHandler(category string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn == nil {
		delete(d.handlers, category)
		return
	}
	d.handlers[category] = fn
}

// AddObserver 添加观察者，重复添加无效果
//
// obs 必须可比较（通常为指针）且至少实现一个能力接口。
func (d *Dispatcher) AddObserver(obs any) error {
	if obs == nil || !implementsAny(obs) {
		return ErrNotObserver
	}
	if !reflect.TypeOf(obs).Comparable() {
		return types.ErrInvalidArgument.WithOp("add_observer", errors.New("observer must be comparable"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.observers {
		if e.obs == obs {
			return nil
		}
	}
	d.observers = append(d.observers, &observerEntry{obs: obs})
	return nil
}

// RemoveObserver 移除观察者
//
// 返回后开始的投递不会再到达该观察者。
func (d *Dispatcher) RemoveObserver(obs any) {
	if obs == nil || !reflect.TypeOf(obs).Comparable() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.observers {
		if e.obs == obs {
			e.removed.Store(true)
			// 复制而非原地修改，正在进行的投递持有旧切片
			next := make([]*observerEntry, 0, len(d.observers)-1)
			next = append(next, d.observers[:i]...)
			next = append(next, d.observers[i+1:]...)
			d.observers = next
			return
		}
	}
}

// RemoveAllObservers 移除所有观察者
func (d *Dispatcher) RemoveAllObservers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.observers {
		e.removed.Store(true)
	}
	d.observers = nil
}

// ObserverCount 返回观察者数量
func (d *Dispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// ============================================================================
//                              投递
// ============================================================================

// Emit 将事件加入投递队列，从不阻塞
//
// callback 为本次请求附带的完成回调，在其余出口之后调用。
func (d *Dispatcher) Emit(ev types.Event, callback Handler) {
	if ev == nil {
		return
	}
	if !d.queue.Post(func() { d.deliver(ev, callback) }) {
		logger.Debug("分发器已关闭，丢弃事件", "category", ev.Category())
	}
}

func (d *Dispatcher) deliver(ev types.Event, callback Handler) {
	category := ev.Category()

	d.mu.RLock()
	handler := d.handlers[category]
	observers := d.observers
	d.mu.RUnlock()

	if handler != nil {
		d.safeCall(SinkHandler, category, func() { handler(ev) })
	}

	for _, e := range observers {
		if e.removed.Load() {
			continue
		}
		obs := e.obs
		d.safeCall(SinkObserver, category, func() { deliverToObserver(obs, ev) })
	}

	if d.bus != nil {
		d.safeCall(SinkBroadcast, category, func() { d.bus.Publish(category, ev.Broadcast()) })
	}

	if callback != nil {
		d.safeCall(SinkCallback, category, func() { callback(ev) })
	}
}

func (d *Dispatcher) safeCall(sink, category string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ObserverPanic(sink)
			logger.Error("事件出口 panic",
				"sink", sink,
				"category", category,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func implementsAny(obs any) bool {
	switch obs.(type) {
	case pkgif.MessageObserver, pkgif.DeliveryObserver, pkgif.MessageDeliveredObserver,
		pkgif.ReachabilityObserver, pkgif.RegistrationObserver, pkgif.ConnectionObserver,
		pkgif.VerificationObserver, pkgif.VerifyUserCodeObserver:
		return true
	}
	return false
}

func deliverToObserver(obs any, ev types.Event) {
	switch e := ev.(type) {
	case types.MessageReceivedEvent:
		if o, ok := obs.(pkgif.MessageObserver); ok {
			o.OnMessageReceived(e.Message)
		}
	case types.DeliveryReceivedEvent:
		if o, ok := obs.(pkgif.DeliveryObserver); ok {
			o.OnDeliveryReceived(e.Delivery)
		}
	case types.MessageDeliveredEvent:
		if o, ok := obs.(pkgif.MessageDeliveredObserver); ok {
			o.OnMessageDelivered(e.Message, e.Err)
		}
	case types.ReachabilityChangedEvent:
		if o, ok := obs.(pkgif.ReachabilityObserver); ok {
			o.OnReachabilityChanged(e.Status)
		}
	case types.RegistrationEvent:
		if o, ok := obs.(pkgif.RegistrationObserver); ok {
			o.OnRegistration(e)
		}
	case types.ConnectionChangedEvent:
		if o, ok := obs.(pkgif.ConnectionObserver); ok {
			o.OnConnectionStateChanged(e.Change)
		}
	case types.VerificationCodeEvent:
		if o, ok := obs.(pkgif.VerificationObserver); ok {
			o.OnVerificationCode(e)
		}
	case types.VerifyUserCodeEvent:
		if o, ok := obs.(pkgif.VerifyUserCodeObserver); ok {
			o.OnVerifyUserCode(e)
		}
	}
}
