// Package eventbus 实现进程级广播总线
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidCategory 无效的事件类别
	ErrInvalidCategory = errors.New("eventbus: invalid category")
)

// DefaultBufferSize 默认订阅缓冲区大小
const DefaultBufferSize = 16

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 以类别名称为键的广播总线
//
// Publish 从不阻塞：订阅者缓冲区满时丢弃并计数。
type Bus struct {
	mu sync.RWMutex

	// nodes 类别节点映射
	nodes map[string]*node

	// stateful 保持最后一条广播的类别
	stateful map[string]bool
}

// node 类别节点
type node struct {
	lk        sync.Mutex
	category  string
	sinks     []*Subscription
	keepLast  bool
	last      *pkgif.BroadcastMessage
	dropCount atomic.Int64
}

// Option 总线选项
type Option func(*Bus)

// WithStateful 指定类别保持最后一条广播，新订阅者立即收到
func WithStateful(categories ...string) Option {
	return func(b *Bus) {
		for _, c := range categories {
			b.stateful[c] = true
		}
	}
}

// NewBus 创建新的广播总线
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		nodes:    make(map[string]*node),
		stateful: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe 订阅类别
func (b *Bus) Subscribe(category string, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	if category == "" {
		return nil, ErrInvalidCategory
	}

	settings := &pkgif.SubscriptionSettings{Buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(settings)
	}
	if settings.Buffer < 1 {
		settings.Buffer = 1
	}

	sub := &Subscription{
		bus:      b,
		category: category,
		out:      make(chan pkgif.BroadcastMessage, settings.Buffer),
	}

	b.withNode(category, func(n *node) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			select {
			case sub.out <- *n.last:
			default:
			}
		}
	})

	return sub, nil
}

// Publish 广播
func (b *Bus) Publish(category string, payload map[string]any) {
	if category == "" {
		return
	}
	b.withNode(category, func(n *node) {
		n.emit(pkgif.BroadcastMessage{Category: category, Payload: payload})
	})
}

// Categories 返回已出现过的类别
func (b *Bus) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.nodes))
	for c := range b.nodes {
		out = append(out, c)
	}
	return out
}

// ============================================================================
// 内部方法
// ============================================================================

// withNode 在节点上执行操作
func (b *Bus) withNode(category string, cb func(*node)) {
	b.mu.Lock()

	n, ok := b.nodes[category]
	if !ok {
		n = &node{
			category: category,
			keepLast: b.stateful[category],
		}
		b.nodes[category] = n
	}

	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	n, ok := b.nodes[sub.category]
	if !ok {
		b.mu.Unlock()
		return
	}

	n.lk.Lock()
	b.mu.Unlock()

	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	n.lk.Unlock()
}

// emit 发射到所有订阅者
func (n *node) emit(msg pkgif.BroadcastMessage) {
	if n.keepLast {
		m := msg
		n.last = &m
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- msg:
		default:
			dropped := n.dropCount.Add(1)

			// 每丢弃 100 条警告一次，避免日志泛滥
			if dropped%100 == 1 {
				logger.Warn("广播订阅者过慢，消息已丢弃",
					"dropped", dropped,
					"category", n.category,
					"reason", "subscriber buffer full")
			}
		}
	}
}

// Dropped 返回类别累计丢弃数
func (b *Bus) Dropped(category string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.nodes[category]; ok {
		return n.dropCount.Load()
	}
	return 0
}

var _ pkgif.BroadcastBus = (*Bus)(nil)
