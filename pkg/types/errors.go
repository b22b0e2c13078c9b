// Package types 定义 pushclient 的基础类型
//
// 本文件定义统一错误域 "pushclient" 及稳定错误码。
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorDomain 错误域名称
const ErrorDomain = "pushclient"

// ============================================================================
//                              错误码
// ============================================================================

// Code 稳定的数值错误码
type Code int

const (
	// CodeNone 无错误码
	CodeNone Code = 0

	// CodeFailRegisterApplication 应用注册失败
	CodeFailRegisterApplication Code = -5009

	// CodeFailRegisterUser 用户注册失败
	CodeFailRegisterUser Code = -5010

	// CodeServerReachability 服务器不可达
	CodeServerReachability Code = -5011

	// CodeServerConnection 服务器连接错误
	CodeServerConnection Code = -5012

	// CodeFailVerification 请求验证码失败
	CodeFailVerification Code = -5013

	// CodeFailVerifyUserCode 校验验证码失败
	//
	// 注意取值为正数 5014，服务端与既有客户端均按此值匹配。
	CodeFailVerifyUserCode Code = 5014

	// CodeNoInternetConnection 设备无网络连接
	CodeNoInternetConnection Code = -5030

	// CodeFailPublish 发布消息投递失败
	CodeFailPublish Code = -5040
)

// String 返回错误码名称
func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeFailRegisterApplication:
		return "fail_register_application"
	case CodeFailRegisterUser:
		return "fail_register_user"
	case CodeServerReachability:
		return "server_reachability"
	case CodeServerConnection:
		return "server_connection"
	case CodeFailVerification:
		return "fail_verification"
	case CodeFailVerifyUserCode:
		return "fail_verify_user_code"
	case CodeNoInternetConnection:
		return "no_internet_connection"
	case CodeFailPublish:
		return "fail_publish"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// ============================================================================
//                              错误分类
// ============================================================================

// Kind 错误分类
type Kind int

const (
	// KindUnknown 未分类
	KindUnknown Kind = iota
	// KindValidation 输入校验错误（同步返回，无事件）
	KindValidation
	// KindConnectivity 连接类错误（无网络、握手失败、超时）
	KindConnectivity
	// KindProtocol 协议/认证错误（服务端拒绝，不自动重试）
	KindProtocol
	// KindLocalState 本地状态错误（未知消息、缺少身份）
	KindLocalState
)

// String 返回分类名称
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnectivity:
		return "connectivity"
	case KindProtocol:
		return "protocol"
	case KindLocalState:
		return "local_state"
	default:
		return "unknown"
	}
}

// Error pushclient 错误
//
// 可用 errors.Is 与下方哨兵错误比较：哨兵带 Reason 时按 Reason 匹配，
// 否则按 Kind/Code 匹配（零值视为通配）。
type Error struct {
	Code   Code
	Kind   Kind
	Reason string
	Op     string
	Err    error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(ErrorDomain)
	b.WriteString(": ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Reason != "" {
		b.WriteString(e.Reason)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Code != CodeNone {
		fmt.Fprintf(&b, " (code %d)", int(e.Code))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" {
		return e.Reason == t.Reason
	}
	if t.Kind != KindUnknown && t.Kind != e.Kind {
		return false
	}
	if t.Code != CodeNone && t.Code != e.Code {
		return false
	}
	return true
}

// WithOp 返回带操作名与原因的副本
func (e *Error) WithOp(op string, cause error) *Error {
	cp := *e
	cp.Op = op
	cp.Err = cause
	return &cp
}

// WithCode 返回替换错误码后的副本
func (e *Error) WithCode(code Code) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// NewError 创建错误
func NewError(code Code, kind Kind, op string, cause error) *Error {
	return &Error{Code: code, Kind: kind, Op: op, Err: cause}
}

// CodeOf 返回错误链上第一个 *Error 的错误码
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeNone
}

// KindOf 返回错误链上第一个 *Error 的分类
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ============================================================================
//                              哨兵错误
// ============================================================================

var (
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = &Error{Kind: KindValidation, Reason: "InvalidArgument"}

	// ErrNotApplicationRegistered 尚未完成应用注册
	ErrNotApplicationRegistered = &Error{
		Kind:   KindLocalState,
		Code:   CodeFailRegisterUser,
		Reason: "RegistrationError/NotApplicationRegistered",
	}

	// ErrMessageNotFound 消息 ID 未知
	ErrMessageNotFound = &Error{Kind: KindLocalState, Reason: "MessageError/NotFound"}

	// ErrNoActiveSession 没有处于 Sent 状态的验证会话
	ErrNoActiveSession = &Error{
		Kind:   KindLocalState,
		Code:   CodeFailVerifyUserCode,
		Reason: "VerificationError/NoActiveSession",
	}

	// ErrNoConnection 无网络或无连接，请求无法发出
	ErrNoConnection = &Error{
		Kind:   KindConnectivity,
		Code:   CodeNoInternetConnection,
		Reason: "ReachabilityError/NoConnection",
	}

	// ErrNotConnected 当前不处于 Connected 状态
	ErrNotConnected = &Error{
		Kind:   KindConnectivity,
		Code:   CodeServerConnection,
		Reason: "ConnectionError/NotConnected",
	}

	// ErrConnectionFailed 握手失败、超时或连接中断
	ErrConnectionFailed = &Error{
		Kind:   KindConnectivity,
		Code:   CodeServerConnection,
		Reason: "ConnectionError/Failed",
	}

	// ErrAuthRejected 服务器拒绝身份，不自动重试
	ErrAuthRejected = &Error{
		Kind:   KindProtocol,
		Code:   CodeServerConnection,
		Reason: "ProtocolError/AuthRejected",
	}

	// ErrRejected 服务器拒绝请求
	ErrRejected = &Error{Kind: KindProtocol, Reason: "ProtocolError/Rejected"}

	// ErrClosed 客户端已关闭
	ErrClosed = &Error{Kind: KindLocalState, Reason: "Closed"}
)

// IsAuthError 检查是否为认证/身份错误
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}
