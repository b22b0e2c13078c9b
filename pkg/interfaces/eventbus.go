// Package interfaces 定义 pushclient 公共接口
//
// 本文件定义进程级广播总线接口。
package interfaces

// BroadcastBus 进程级广播总线
//
// 以事件类别名称为键，载荷为可重建状态的最小映射。
type BroadcastBus interface {
	// Publish 向类别的所有订阅者广播
	Publish(category string, payload map[string]any)

	// Subscribe 订阅类别
	Subscribe(category string, opts ...SubscriptionOpt) (Subscription, error)
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	Category string
	Payload  map[string]any
}

// Subscription 定义订阅接口
type Subscription interface {
	// Out 返回接收广播的通道
	Out() <-chan BroadcastMessage

	// Close 取消订阅
	Close() error
}

// SubscriptionOpt 订阅选项函数类型
type SubscriptionOpt func(*SubscriptionSettings)

// SubscriptionSettings 订阅设置（导出以供实现使用）
type SubscriptionSettings struct {
	Buffer int
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}
