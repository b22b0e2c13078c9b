package metrics

import (
	"time"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// Reporter 会话指标记录接口
//
// 所有方法必须并发安全且不阻塞。
type Reporter interface {
	// ConnectionTransition 记录一次连接状态转换
	ConnectionTransition(to types.ConnectionState)

	// ConnectAttempt 记录一次连接尝试
	ConnectAttempt()

	// BackoffScheduled 记录退避延迟
	BackoffScheduled(delay time.Duration)

	// MessageReceived 记录入站消息，duplicate 表示去重丢弃
	MessageReceived(duplicate bool)

	// MessagePublished 记录发布派发
	MessagePublished()

	// ObserverPanic 记录观察者或回调 panic
	ObserverPanic(sink string)

	// LateResponseDropped 记录被丢弃的迟到响应
	LateResponseDropped(kind string)

	// OutboxDepth 记录待重放队列长度
	OutboxDepth(n int)
}

// Nop 不记录任何指标
type Nop struct{}

func (Nop) ConnectionTransition(types.ConnectionState) {}
func (Nop) ConnectAttempt() {}
func (Nop) BackoffScheduled(time.Duration) {}
func (Nop) MessageReceived(bool) {}
func (Nop) MessagePublished() {}
func (Nop) ObserverPanic(string) {}
func (Nop) LateResponseDropped(string) {}
func (Nop) OutboxDepth(int) {}

var _ Reporter = Nop{}
