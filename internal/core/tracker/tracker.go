// Package tracker 记录入站与出站消息
//
// Tracker 按消息 ID 去重，并原地维护投递确认、已读与忽略标记。
// 条目不会自动淘汰，由嵌入方调用 Discard 清理。
package tracker

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("core/tracker")

// Tracker 消息追踪器
type Tracker struct {
	clock clock.Clock

	mu       sync.RWMutex
	messages map[string]*types.Message
	order    []string
}

// New 创建追踪器
func New(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		clock:    clk,
		messages: make(map[string]*types.Message),
	}
}

// Ingest 记录入站消息
//
// 返回存储副本；同一 ID 第二次到达时 duplicate 为 true，不覆盖已有条目。
func (t *Tracker) Ingest(msg *types.Message) (stored *types.Message, duplicate bool, err error) {
	if msg == nil || msg.ID == "" {
		return nil, false, types.ErrInvalidArgument.WithOp("ingest", fmt.Errorf("message id required"))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.messages[msg.ID]; ok {
		logger.Debug("重复消息，已忽略", "id", log.TruncateID(msg.ID, 8))
		return existing.Clone(), true, nil
	}

	cp := msg.Clone()
	cp.Outbound = false
	if cp.ReceivedAt.IsZero() {
		cp.ReceivedAt = t.clock.Now()
	}
	t.insertLocked(cp)
	return cp.Clone(), false, nil
}

// TrackOutbound 记录已派发的出站消息
func (t *Tracker) TrackOutbound(msg *types.Message) error {
	if msg == nil || msg.ID == "" {
		return types.ErrInvalidArgument.WithOp("publish", fmt.Errorf("message id required"))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.messages[msg.ID]; ok {
		return types.ErrInvalidArgument.WithOp("publish", fmt.Errorf("duplicate message id %q", msg.ID))
	}
	cp := msg.Clone()
	cp.Outbound = true
	t.insertLocked(cp)
	return nil
}

func (t *Tracker) insertLocked(msg *types.Message) {
	t.messages[msg.ID] = msg
	t.order = append(t.order, msg.ID)
}

// MarkDelivered 标记投递确认
func (t *Tracker) MarkDelivered(id string) (*types.Message, error) {
	return t.update(id, func(m *types.Message) { m.DeliveryAcked = true })
}

// MarkRead 标记已读
func (t *Tracker) MarkRead(id string) (*types.Message, error) {
	return t.update(id, func(m *types.Message) { m.ReadMarked = true })
}

// MarkDismissed 标记忽略
func (t *Tracker) MarkDismissed(id string) (*types.Message, error) {
	return t.update(id, func(m *types.Message) { m.Dismissed = true })
}

// update 未知 ID 返回 ErrMessageNotFound，追踪器不变
func (t *Tracker) update(id string, fn func(*types.Message)) (*types.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.messages[id]
	if !ok {
		return nil, types.ErrMessageNotFound.WithOp("mark", fmt.Errorf("message %q", id))
	}
	fn(m)
	return m.Clone(), nil
}

// Get 返回消息副本
func (t *Tracker) Get(id string) (*types.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.messages[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Has 是否已记录
func (t *Tracker) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.messages[id]
	return ok
}

// Discard 移除条目，返回是否存在
func (t *Tracker) Discard(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.messages[id]; !ok {
		return false
	}
	delete(t.messages, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Len 返回条目数
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages 按记录顺序返回全部消息副本
func (t *Tracker) Messages() []*types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*types.Message, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.messages[id].Clone())
	}
	return out
}
