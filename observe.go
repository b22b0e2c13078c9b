package pushclient

import (
	"fmt"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

// ════════════════════════════════════════════════════════════════════════════
//                              观察者
// ════════════════════════════════════════════════════════════════════════════

// AddObserver 添加观察者
//
// obs 须至少实现一个观察接口（MessageObserver、ConnectionObserver 等），
// 按添加顺序接收事件。重复添加同一观察者无效果。
func (c *Client) AddObserver(obs any) error {
	return c.session.AddObserver(obs)
}

// RemoveObserver 移除观察者
//
// 返回后开始的投递不再送达该观察者。
func (c *Client) RemoveObserver(obs any) {
	c.session.RemoveObserver(obs)
}

// RemoveAllObservers 移除全部观察者
func (c *Client) RemoveAllObservers() {
	c.session.RemoveAllObservers()
}

// ════════════════════════════════════════════════════════════════════════════
//                              处理函数
// ════════════════════════════════════════════════════════════════════════════

// SetHandler 设置类别的处理函数，每个类别只保留最后设置的一个，nil 清除
func (c *Client) SetHandler(category string, fn Handler) {
	c.session.SetHandler(category, fn)
}

// OnMessageReceived 设置新消息处理函数
func (c *Client) OnMessageReceived(fn func(msg *Message)) {
	if fn == nil {
		c.SetHandler(CategoryMessageReceived, nil)
		return
	}
	c.SetHandler(CategoryMessageReceived, func(ev Event) {
		if e, ok := ev.(MessageReceivedEvent); ok {
			fn(e.Message)
		}
	})
}

// OnConnectionChanged 设置连接状态处理函数
func (c *Client) OnConnectionChanged(fn func(change StateChange)) {
	if fn == nil {
		c.SetHandler(CategoryConnectionChanged, nil)
		return
	}
	c.SetHandler(CategoryConnectionChanged, func(ev Event) {
		if e, ok := ev.(ConnectionChangedEvent); ok {
			fn(e.Change)
		}
	})
}

// OnReachabilityChanged 设置可达性处理函数
func (c *Client) OnReachabilityChanged(fn func(status ReachabilityStatus)) {
	if fn == nil {
		c.SetHandler(CategoryReachabilityChanged, nil)
		return
	}
	c.SetHandler(CategoryReachabilityChanged, func(ev Event) {
		if e, ok := ev.(ReachabilityChangedEvent); ok {
			fn(e.Status)
		}
	})
}

// OnRegistration 设置注册结果处理函数
func (c *Client) OnRegistration(fn func(ev RegistrationEvent)) {
	if fn == nil {
		c.SetHandler(CategoryRegistration, nil)
		return
	}
	c.SetHandler(CategoryRegistration, func(ev Event) {
		if e, ok := ev.(RegistrationEvent); ok {
			fn(e)
		}
	})
}

// OnMessageDelivered 设置已发布消息的服务器确认处理函数，失败时 err 非 nil
func (c *Client) OnMessageDelivered(fn func(msg *Message, err error)) {
	if fn == nil {
		c.SetHandler(CategoryMessageDelivered, nil)
		return
	}
	c.SetHandler(CategoryMessageDelivered, func(ev Event) {
		if e, ok := ev.(MessageDeliveredEvent); ok {
			fn(e.Message, e.Err)
		}
	})
}

// OnDeliveryReceived 设置对端投递回执处理函数
func (c *Client) OnDeliveryReceived(fn func(d Delivery)) {
	if fn == nil {
		c.SetHandler(CategoryDeliveryReceived, nil)
		return
	}
	c.SetHandler(CategoryDeliveryReceived, func(ev Event) {
		if e, ok := ev.(DeliveryReceivedEvent); ok {
			fn(e.Delivery)
		}
	})
}

// OnVerificationCode 设置验证码下发结果处理函数
func (c *Client) OnVerificationCode(fn func(ev VerificationCodeEvent)) {
	if fn == nil {
		c.SetHandler(CategoryVerificationCode, nil)
		return
	}
	c.SetHandler(CategoryVerificationCode, func(ev Event) {
		if e, ok := ev.(VerificationCodeEvent); ok {
			fn(e)
		}
	})
}

// OnVerifyUserCode 设置验证码校验结果处理函数
func (c *Client) OnVerifyUserCode(fn func(ev VerifyUserCodeEvent)) {
	if fn == nil {
		c.SetHandler(CategoryVerifyUserCode, nil)
		return
	}
	c.SetHandler(CategoryVerifyUserCode, func(ev Event) {
		if e, ok := ev.(VerifyUserCodeEvent); ok {
			fn(e)
		}
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              广播总线
// ════════════════════════════════════════════════════════════════════════════

// SubscribeBroadcast 订阅广播总线上的类别
//
// 未使用 WithBroadcastBus 时总线是进程级的，同一进程内的所有客户端共享。
func (c *Client) SubscribeBroadcast(category string, bufSize int) (Subscription, error) {
	if category == "" {
		return nil, fmt.Errorf("category cannot be empty")
	}
	var opts []pkgif.SubscriptionOpt
	if bufSize > 0 {
		opts = append(opts, pkgif.BufSize(bufSize))
	}
	return c.bus.Subscribe(category, opts...)
}
