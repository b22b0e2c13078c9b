package fanout

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/internal/core/eventbus"
	"github.com/dep2p/go-pushclient/internal/core/metrics"
	"github.com/dep2p/go-pushclient/pkg/types"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type msgObserver struct {
	name string
	rec  *recorder
}

func (o *msgObserver) OnMessageReceived(msg *types.Message) {
	o.rec.add(o.name + ":" + msg.ID)
}

type connObserver struct {
	rec *recorder
}

func (o *connObserver) OnConnectionStateChanged(change types.StateChange) {
	o.rec.add("conn:" + change.Current.String())
}

type panicObserver struct{}

func (panicObserver) OnMessageReceived(*types.Message) { panic("boom") }

type panicCounter struct {
	metrics.Nop
	mu     sync.Mutex
	counts map[string]int
}

func (p *panicCounter) ObserverPanic(sink string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts == nil {
		p.counts = make(map[string]int)
	}
	p.counts[sink]++
}

func newStarted(t *testing.T, bus *eventbus.Bus, reporter metrics.Reporter) *Dispatcher {
	t.Helper()
	d := New(bus, reporter)
	d.Start()
	t.Cleanup(d.Close)
	return d
}

func msgEvent(id string) types.Event {
	return types.MessageReceivedEvent{Message: &types.Message{ID: id, Channel: "default"}}
}

// TestDispatcher_SinkOrder 测试出口顺序：处理函数 → 观察者 → 广播 → 回调
func TestDispatcher_SinkOrder(t *testing.T) {
	rec := &recorder{}
	bus := eventbus.NewBus()
	sub, err := bus.Subscribe(types.CategoryMessageReceived)
	require.NoError(t, err)
	defer sub.Close()

	d := newStarted(t, bus, nil)
	d.SetHandler(types.CategoryMessageReceived, func(ev types.Event) { rec.add("handler") })
	require.NoError(t, d.AddObserver(&msgObserver{name: "a", rec: rec}))
	require.NoError(t, d.AddObserver(&msgObserver{name: "b", rec: rec}))

	d.Emit(msgEvent("m1"), func(ev types.Event) {
		// 回调执行时广播已发出
		select {
		case <-sub.Out():
			rec.add("broadcast")
		default:
		}
		rec.add("callback")
	})
	d.Flush()

	assert.Equal(t, []string{"handler", "a:m1", "b:m1", "broadcast", "callback"}, rec.snapshot())
}

// TestDispatcher_FIFO 测试事件按提交顺序投递
func TestDispatcher_FIFO(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	require.NoError(t, d.AddObserver(&msgObserver{name: "o", rec: rec}))

	for _, id := range []string{"1", "2", "3", "4"} {
		d.Emit(msgEvent(id), nil)
	}
	d.Flush()

	assert.Equal(t, []string{"o:1", "o:2", "o:3", "o:4"}, rec.snapshot())
}

// TestDispatcher_CapabilitySubset 测试观察者只收到其实现的事件
func TestDispatcher_CapabilitySubset(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	require.NoError(t, d.AddObserver(&connObserver{rec: rec}))

	d.Emit(msgEvent("m1"), nil)
	d.Emit(types.ConnectionChangedEvent{Change: types.StateChange{
		Previous: types.Connecting,
		Current:  types.Connected,
	}}, nil)
	d.Flush()

	assert.Equal(t, []string{"conn:connected"}, rec.snapshot())
}

// TestDispatcher_AddObserver_Rejects 测试无能力接口的对象被拒绝
func TestDispatcher_AddObserver_Rejects(t *testing.T) {
	d := New(nil, nil)
	assert.ErrorIs(t, d.AddObserver(struct{}{}), ErrNotObserver)
	assert.ErrorIs(t, d.AddObserver(nil), ErrNotObserver)
	assert.Equal(t, 0, d.ObserverCount())
}

// TestDispatcher_AddObserver_Idempotent 测试重复添加
func TestDispatcher_AddObserver_Idempotent(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	obs := &msgObserver{name: "o", rec: rec}
	require.NoError(t, d.AddObserver(obs))
	require.NoError(t, d.AddObserver(obs))
	assert.Equal(t, 1, d.ObserverCount())

	d.Emit(msgEvent("x"), nil)
	d.Flush()
	assert.Equal(t, []string{"o:x"}, rec.snapshot())
}

// TestDispatcher_RemoveObserver 测试移除后不再投递
func TestDispatcher_RemoveObserver(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	a := &msgObserver{name: "a", rec: rec}
	b := &msgObserver{name: "b", rec: rec}
	require.NoError(t, d.AddObserver(a))
	require.NoError(t, d.AddObserver(b))

	d.Emit(msgEvent("1"), nil)
	d.Flush()
	d.RemoveObserver(a)
	d.Emit(msgEvent("2"), nil)
	d.Flush()
	d.RemoveAllObservers()
	d.Emit(msgEvent("3"), nil)
	d.Flush()

	assert.Equal(t, []string{"a:1", "b:1", "b:2"}, rec.snapshot())
	assert.Equal(t, 0, d.ObserverCount())
}

// TestDispatcher_RemoveDuringDelivery 测试投递中移除后续观察者
func TestDispatcher_RemoveDuringDelivery(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	b := &msgObserver{name: "b", rec: rec}

	remover := &removingObserver{d: d, target: b, rec: rec}
	require.NoError(t, d.AddObserver(remover))
	require.NoError(t, d.AddObserver(b))

	d.Emit(msgEvent("1"), nil)
	d.Flush()

	assert.Equal(t, []string{"remover:1"}, rec.snapshot())
}

type removingObserver struct {
	d      *Dispatcher
	target any
	rec    *recorder
}

func (o *removingObserver) OnMessageReceived(msg *types.Message) {
	o.rec.add("remover:" + msg.ID)
	o.d.RemoveObserver(o.target)
}

// TestDispatcher_SetHandler_Replaces 测试单槽处理函数覆盖
func TestDispatcher_SetHandler_Replaces(t *testing.T) {
	rec := &recorder{}
	d := newStarted(t, nil, nil)
	d.SetHandler(types.CategoryMessageReceived, func(types.Event) { rec.add("first") })
	d.SetHandler(types.CategoryMessageReceived, func(types.Event) { rec.add("second") })

	d.Emit(msgEvent("1"), nil)
	d.Flush()
	d.SetHandler(types.CategoryMessageReceived, nil)
	d.Emit(msgEvent("2"), nil)
	d.Flush()

	assert.Equal(t, []string{"second"}, rec.snapshot())
}

// TestDispatcher_PanicIsolation 测试 panic 不影响其余出口
func TestDispatcher_PanicIsolation(t *testing.T) {
	rec := &recorder{}
	counter := &panicCounter{}
	d := newStarted(t, nil, counter)

	d.SetHandler(types.CategoryMessageReceived, func(types.Event) { panic("handler") })
	require.NoError(t, d.AddObserver(panicObserver{}))
	require.NoError(t, d.AddObserver(&msgObserver{name: "ok", rec: rec}))

	d.Emit(msgEvent("1"), func(types.Event) {
		rec.add("callback")
		panic(errors.New("callback"))
	})
	d.Emit(msgEvent("2"), nil)
	d.Flush()

	assert.Equal(t, []string{"ok:1", "callback", "ok:2"}, rec.snapshot())

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.Equal(t, 2, counter.counts[SinkHandler])
	assert.Equal(t, 2, counter.counts[SinkObserver])
	assert.Equal(t, 1, counter.counts[SinkCallback])
}

// TestDispatcher_Broadcast 测试广播载荷
func TestDispatcher_Broadcast(t *testing.T) {
	bus := eventbus.NewBus()
	sub, err := bus.Subscribe(types.CategoryMessageReceived)
	require.NoError(t, err)
	defer sub.Close()

	d := newStarted(t, bus, nil)
	d.Emit(msgEvent("m9"), nil)
	d.Flush()

	select {
	case msg := <-sub.Out():
		assert.Equal(t, types.CategoryMessageReceived, msg.Category)
		assert.Equal(t, "m9", msg.Payload["id"])
	default:
		t.Fatal("broadcast not published")
	}
}

// TestDispatcher_EmitAfterClose 测试关闭后 Emit 不阻塞
func TestDispatcher_EmitAfterClose(t *testing.T) {
	d := New(nil, nil)
	d.Start()
	d.Close()
	d.Emit(msgEvent("late"), nil)
	d.Flush()
}
