package types

import (
	"fmt"
	"time"
)

// ConnectionState 服务器连接状态
//
// 数值是线协议与广播载荷的一部分，不可变更。
type ConnectionState int

const (
	// ConnectingStart 初始状态，尚未发起连接
	ConnectingStart ConnectionState = -2
	// Connecting 正在连接
	Connecting ConnectionState = -1
	// Connected 已连接
	Connected ConnectionState = 0
	// Disconnected 连接断开（无确定故障）
	Disconnected ConnectionState = 1
	// DisconnectedError 因错误断开
	DisconnectedError ConnectionState = 2
)

// String 返回状态字符串
func (s ConnectionState) String() string {
	switch s {
	case ConnectingStart:
		return "connecting_start"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case DisconnectedError:
		return "disconnected_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateChangeReason 状态变更原因
type StateChangeReason int

const (
	// ReasonUnknown 未知
	ReasonUnknown StateChangeReason = iota
	// ReasonReachable 检测到可达网络，发起连接
	ReasonReachable
	// ReasonHandshakeSucceeded 握手成功
	ReasonHandshakeSucceeded
	// ReasonHandshakeFailed 握手失败或超时
	ReasonHandshakeFailed
	// ReasonReachabilityLost 网络不可达
	ReasonReachabilityLost
	// ReasonTransportClosed 传输层关闭
	ReasonTransportClosed
	// ReasonManualRetry 显式重连
	ReasonManualRetry
	// ReasonBackoffRetry 退避定时器触发重连
	ReasonBackoffRetry
	// ReasonAuthRejected 认证被拒绝
	ReasonAuthRejected
	// ReasonShutdown 客户端关闭
	ReasonShutdown
	// ReasonRegistration 注册请求需要连接
	ReasonRegistration
	// ReasonForeground 应用回到前台
	ReasonForeground
)

// String 返回原因字符串
func (r StateChangeReason) String() string {
	switch r {
	case ReasonReachable:
		return "reachable"
	case ReasonHandshakeSucceeded:
		return "handshake_succeeded"
	case ReasonHandshakeFailed:
		return "handshake_failed"
	case ReasonReachabilityLost:
		return "reachability_lost"
	case ReasonTransportClosed:
		return "transport_closed"
	case ReasonManualRetry:
		return "manual_retry"
	case ReasonBackoffRetry:
		return "backoff_retry"
	case ReasonAuthRejected:
		return "auth_rejected"
	case ReasonShutdown:
		return "shutdown"
	case ReasonRegistration:
		return "registration"
	case ReasonForeground:
		return "foreground"
	default:
		return "unknown"
	}
}

// StateChange 一次连接状态转换
type StateChange struct {
	Previous ConnectionState
	Current  ConnectionState
	Reason   StateChangeReason
	Err      error
	At       time.Time
}
