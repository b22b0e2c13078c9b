package types

import "time"

// VerificationOutcome 验证会话状态
type VerificationOutcome int

const (
	// VerificationPending 请求已登记，等待服务器确认发送
	VerificationPending VerificationOutcome = iota
	// VerificationSent 验证码已发送
	VerificationSent
	// VerificationVerified 验证成功（终态）
	VerificationVerified
	// VerificationFailed 失败（终态，可重新请求）
	VerificationFailed
)

// String 返回状态字符串
func (o VerificationOutcome) String() string {
	switch o {
	case VerificationPending:
		return "pending"
	case VerificationSent:
		return "sent"
	case VerificationVerified:
		return "verified"
	case VerificationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal 是否终态
func (o VerificationOutcome) IsTerminal() bool {
	return o == VerificationVerified || o == VerificationFailed
}

// 验证码下发媒介
const (
	MediaDefault = ""
	MediaSMS     = "sms"
	MediaCall    = "call"
	MediaEmail   = "email"
)

// VerificationSession 单个用户的验证会话
//
// 同一 UserID 同时至多一个 Pending/Sent 会话，新请求取代旧会话。
type VerificationSession struct {
	UserID         string
	RequestedMedia string
	CodeSentAt     time.Time
	Outcome        VerificationOutcome

	// Generation 会话代号，用于丢弃已被取代会话的迟到响应
	Generation uint64
}

// IsActive 是否处于 Pending/Sent
func (s VerificationSession) IsActive() bool {
	return !s.Outcome.IsTerminal()
}
