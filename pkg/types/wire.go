package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
//                              请求/响应信封
// ============================================================================

// Op 请求操作名
type Op string

const (
	OpHello            Op = "hello"
	OpAppRegister      Op = "app.register"
	OpUserRegister     Op = "user.register"
	OpVerifyRequest    Op = "verify.request"
	OpVerifyCode       Op = "verify.code"
	OpChannelSubscribe Op = "channel.subscribe"
	OpChannelUnsub     Op = "channel.unsubscribe"
	OpChannelList      Op = "channel.list"
	OpMessagePublish   Op = "message.publish"
	OpMessageAck       Op = "message.ack"
	OpMessageRead      Op = "message.read"
	OpMessageDismiss   Op = "message.dismiss"
	OpDeviceToken      Op = "device.token"
	OpCrashReport      Op = "crash.report"
)

// 推送类型
const (
	PushMessage  = "message"
	PushDelivery = "delivery"
)

// ResponseReasonAuth 服务端以此标记认证/身份拒绝
const ResponseReasonAuth = "auth"

// Request 发往服务器的请求
type Request struct {
	ID   string          `json:"id"`
	Op   Op              `json:"op"`
	Body json.RawMessage `json:"body,omitempty"`
}

// NewRequest 编码请求体，ID 由传输层分配
func NewRequest(op Op, body any) (*Request, error) {
	req := &Request{Op: op}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, ErrInvalidArgument.WithOp(string(op), err)
		}
		req.Body = data
	}
	return req, nil
}

// Decode 解码请求体
func (r *Request) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Response 服务器响应
type Response struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Code    int             `json:"code,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// Decode 解码响应体
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Err 将拒绝响应转换为错误
//
// 认证拒绝返回 ErrAuthRejected；其余返回 ErrRejected，错误码取响应码，
// 响应未给出时使用 fallback。
func (r *Response) Err(op Op, fallback Code) error {
	if r == nil {
		return ErrConnectionFailed.WithOp(string(op), errors.New("empty response"))
	}
	if r.OK {
		return nil
	}
	code := Code(r.Code)
	if code == CodeNone {
		code = fallback
	}
	msg := r.Message
	if msg == "" {
		msg = "request rejected"
	}
	if r.Reason == ResponseReasonAuth {
		return ErrAuthRejected.WithOp(string(op), errors.New(msg)).WithCode(code)
	}
	return ErrRejected.WithOp(string(op), errors.New(msg)).WithCode(code)
}

// OKResponse 构造成功响应
func OKResponse(id string, body any) (*Response, error) {
	resp := &Response{ID: id, OK: true}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode response body: %w", err)
		}
		resp.Body = data
	}
	return resp, nil
}

// Push 服务器主动推送
type Push struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// Hello 握手信息
type Hello struct {
	ApplicationID string `json:"application_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	DeviceToken   []byte `json:"device_token,omitempty"`
	Version       string `json:"version"`
}

// ============================================================================
//                              请求体
// ============================================================================

// AppRegisterRequest 应用注册
type AppRegisterRequest struct {
	ApplicationID string `json:"application_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	DeviceToken   []byte `json:"device_token,omitempty"`
}

// UserRegisterRequest 用户注册
type UserRegisterRequest struct {
	ApplicationID string   `json:"application_id"`
	UserID        string   `json:"user_id"`
	Channels      []string `json:"channels,omitempty"`
	UserInfo      Payload  `json:"user_info,omitempty"`
}

// ChannelsResult 服务器返回的频道列表
//
// Channels 为 nil 表示服务器未给出权威列表。
type ChannelsResult struct {
	Channels []string `json:"channels"`
}

// VerifyRequest 请求验证码
type VerifyRequest struct {
	UserID string `json:"user_id"`
	Media  string `json:"media,omitempty"`
}

// VerifyCodeRequest 校验验证码
type VerifyCodeRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// VerifyCodeResult 校验结果
type VerifyCodeResult struct {
	Verified bool `json:"verified"`
}

// ChannelRequest 订阅/退订
type ChannelRequest struct {
	Channel string `json:"channel"`
}

// PublishRequest 发布消息
type PublishRequest struct {
	ID      string  `json:"id"`
	Channel string  `json:"channel"`
	Payload Payload `json:"payload"`
}

// MessageRefRequest 消息回执/已读/忽略
type MessageRefRequest struct {
	MessageID string `json:"message_id"`
}

// DeviceTokenRequest 设备令牌更新，Token 为空表示移除
type DeviceTokenRequest struct {
	Token []byte `json:"token,omitempty"`
}

// CrashReportRequest 崩溃信息上报
type CrashReportRequest struct {
	Info Payload `json:"info"`
}

// InboundMessage 推送的消息体
type InboundMessage struct {
	ID       string  `json:"id"`
	Channel  string  `json:"channel"`
	SenderID string  `json:"sender_id,omitempty"`
	Payload  Payload `json:"payload"`
}
