package reachability

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("core/reachability")

// subscriberBuffer 订阅通道缓冲
const subscriberBuffer = 8

// hub 可达性订阅者集合
type hub struct {
	mu      sync.Mutex
	subs    map[uint64]chan types.ReachabilityStatus
	nextID  uint64
	closed  bool
	timeout time.Duration
	clock   clock.Clock
}

func newHub(clk clock.Clock, timeout time.Duration) *hub {
	if clk == nil {
		clk = clock.New()
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &hub{
		subs:    make(map[uint64]chan types.ReachabilityStatus),
		timeout: timeout,
		clock:   clk,
	}
}

// subscribe 注册订阅者，cancel 可重复调用
func (h *hub) subscribe() (<-chan types.ReachabilityStatus, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan types.ReachabilityStatus, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// notify 向所有订阅者发送状态
//
// 持有锁发送，cancel 与发送互斥，不会写入已关闭的通道。
func (h *hub) notify(status types.ReachabilityStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- status:
			continue
		default:
		}

		logger.Warn("订阅者处理过慢，可达性变更可能延迟",
			"reachable", status.Reachable,
			"network", status.NetworkType.String())

		timer := h.clock.Timer(h.timeout)
		select {
		case ch <- status:
			timer.Stop()
			logger.Debug("延迟发送成功")
		case <-timer.C:
			logger.Error("订阅者无响应，丢弃可达性变更通知",
				"reachable", status.Reachable)
		}
	}
}

// closeAll 关闭所有订阅通道，之后的订阅立即得到已关闭通道
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
