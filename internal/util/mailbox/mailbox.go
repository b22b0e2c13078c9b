// Package mailbox 提供单 goroutine 串行执行器
//
// Post 投递的闭包按 FIFO 顺序在同一个 goroutine 上执行，队列无界，
// 因此 Post 永不阻塞。闭包内 panic 会被恢复并记录，执行器继续运行。
package mailbox

import (
	"errors"
	"runtime/debug"
	"sync"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
)

var logger = log.Logger("util/mailbox")

// ErrClosed 执行器已关闭
var ErrClosed = errors.New("mailbox: closed")

// Mailbox 无界 FIFO 串行执行器
type Mailbox struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	started bool

	wake chan struct{}
	done chan struct{}
}

// New 创建执行器
func New() *Mailbox {
	return &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start 启动执行 goroutine，重复调用无效果
func (m *Mailbox) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.loop()
}

// Post 投递闭包，已关闭时返回 false
func (m *Mailbox) Post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Call 投递闭包并等待执行完成
//
// 不得在执行 goroutine 内部调用。
func (m *Mailbox) Call(fn func()) error {
	ran := make(chan struct{})
	if !m.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-m.done:
		// 关闭前可能已执行
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close 停止接收新闭包，执行完已排队的闭包后退出
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if !started {
		close(m.done)
		return
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	<-m.done
}

// Done 执行 goroutine 退出后关闭
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Len 返回排队中的闭包数量
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mailbox) loop() {
	defer close(m.done)

	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		closed := m.closed
		m.mu.Unlock()

		for _, fn := range batch {
			m.run(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-m.wake
	}
}

func (m *Mailbox) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("执行器任务 panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
