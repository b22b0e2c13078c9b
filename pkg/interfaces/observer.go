// Package interfaces 定义 pushclient 公共接口
//
// 本文件定义观察者能力接口。观察者可只实现其中任意子集。
package interfaces

import "github.com/dep2p/go-pushclient/pkg/types"

// MessageObserver 接收新消息
type MessageObserver interface {
	OnMessageReceived(msg *types.Message)
}

// DeliveryObserver 接收投递回执
type DeliveryObserver interface {
	OnDeliveryReceived(d types.Delivery)
}

// MessageDeliveredObserver 本地发布消息的投递结果
type MessageDeliveredObserver interface {
	OnMessageDelivered(msg *types.Message, err error)
}

// ReachabilityObserver 网络可达性变化
type ReachabilityObserver interface {
	OnReachabilityChanged(status types.ReachabilityStatus)
}

// RegistrationObserver 应用/用户注册结果
type RegistrationObserver interface {
	OnRegistration(ev types.RegistrationEvent)
}

// ConnectionObserver 连接状态转换
type ConnectionObserver interface {
	OnConnectionStateChanged(change types.StateChange)
}

// VerificationObserver 验证码请求结果
type VerificationObserver interface {
	OnVerificationCode(ev types.VerificationCodeEvent)
}

// VerifyUserCodeObserver 验证码校验结果
type VerifyUserCodeObserver interface {
	OnVerifyUserCode(ev types.VerifyUserCodeEvent)
}
