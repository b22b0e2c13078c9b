package eventbus

import (
	"sync"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	category  string
	out       chan pkgif.BroadcastMessage
	closeOnce sync.Once
}

// Out 返回广播通道
func (s *Subscription) Out() <-chan pkgif.BroadcastMessage {
	return s.out
}

// Close 取消订阅
//
// 并发安全，可以多次调用。先从总线移除再关闭通道，
// 因此关闭后不会再有发送。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}
