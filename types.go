package pushclient

import (
	"github.com/dep2p/go-pushclient/internal/core/lifecycle"
	"github.com/dep2p/go-pushclient/internal/session"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              连接状态
// ════════════════════════════════════════════════════════════════════════════

type (
	// ConnectionState 服务器连接状态
	ConnectionState = types.ConnectionState

	// StateChange 一次连接状态转换
	StateChange = types.StateChange

	// StateChangeReason 状态变更原因
	StateChangeReason = types.StateChangeReason

	// ReachabilityStatus 网络可达性
	ReachabilityStatus = types.ReachabilityStatus

	// NetworkType 网络接入类型
	NetworkType = types.NetworkType
)

const (
	ConnectingStart   = types.ConnectingStart
	Connecting        = types.Connecting
	Connected         = types.Connected
	Disconnected      = types.Disconnected
	DisconnectedError = types.DisconnectedError
)

const (
	NetworkNone     = types.NetworkNone
	NetworkCellular = types.NetworkCellular
	NetworkWiFi     = types.NetworkWiFi
)

// Phase 客户端生命周期阶段
type Phase = lifecycle.Phase

const (
	PhaseCreated  = lifecycle.PhaseCreated
	PhaseStarting = lifecycle.PhaseStarting
	PhaseRunning  = lifecycle.PhaseRunning
	PhaseStopping = lifecycle.PhaseStopping
	PhaseStopped  = lifecycle.PhaseStopped
)

// ════════════════════════════════════════════════════════════════════════════
//                              身份与消息
// ════════════════════════════════════════════════════════════════════════════

type (
	// Credentials 应用注册凭据
	Credentials = types.Credentials

	// Identity 注册身份
	Identity = types.Identity

	// UserOptions 用户注册选项
	UserOptions = session.UserOptions

	// Message 推送消息
	Message = types.Message

	// Delivery 投递回执
	Delivery = types.Delivery

	// Payload 消息载荷
	Payload = types.Payload

	// Value 载荷值
	Value = types.Value

	// VerificationSession 验证会话
	VerificationSession = types.VerificationSession

	// VerificationOutcome 验证会话结果
	VerificationOutcome = types.VerificationOutcome
)

// 验证码下发媒介
const (
	MediaDefault = types.MediaDefault
	MediaSMS     = types.MediaSMS
	MediaCall    = types.MediaCall
	MediaEmail   = types.MediaEmail
)

// NewMessage 创建待发布消息
func NewMessage(channel string, payload Payload) *Message {
	return types.NewMessage(channel, payload)
}

// PayloadFromRaw 从通用映射构造载荷
func PayloadFromRaw(raw map[string]any) (Payload, error) {
	return types.PayloadFromRaw(raw)
}

// ════════════════════════════════════════════════════════════════════════════
//                              错误码
// ════════════════════════════════════════════════════════════════════════════

// Code 稳定错误码
type Code = types.Code

const (
	CodeNone                    = types.CodeNone
	CodeFailRegisterApplication = types.CodeFailRegisterApplication
	CodeFailRegisterUser        = types.CodeFailRegisterUser
	CodeServerReachability      = types.CodeServerReachability
	CodeServerConnection        = types.CodeServerConnection
	CodeFailVerification        = types.CodeFailVerification
	CodeFailVerifyUserCode      = types.CodeFailVerifyUserCode
	CodeNoInternetConnection    = types.CodeNoInternetConnection
	CodeFailPublish             = types.CodeFailPublish
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

type (
	// Event 客户端事件
	Event = types.Event

	// Handler 事件处理函数
	Handler = session.Handler

	MessageReceivedEvent     = types.MessageReceivedEvent
	MessageDeliveredEvent    = types.MessageDeliveredEvent
	DeliveryReceivedEvent    = types.DeliveryReceivedEvent
	ReachabilityChangedEvent = types.ReachabilityChangedEvent
	ConnectionChangedEvent   = types.ConnectionChangedEvent
	RegistrationEvent        = types.RegistrationEvent
	VerificationCodeEvent    = types.VerificationCodeEvent
	VerifyUserCodeEvent      = types.VerifyUserCodeEvent
	SubscriptionsSyncedEvent = types.SubscriptionsSyncedEvent
)

// 事件类别，同时是广播总线的键
const (
	CategoryMessageReceived     = types.CategoryMessageReceived
	CategoryMessageDelivered    = types.CategoryMessageDelivered
	CategoryDeliveryReceived    = types.CategoryDeliveryReceived
	CategoryReachabilityChanged = types.CategoryReachabilityChanged
	CategoryRegistration        = types.CategoryRegistration
	CategoryConnectionChanged   = types.CategoryConnectionChanged
	CategoryVerificationCode    = types.CategoryVerificationCode
	CategoryVerifyUserCode      = types.CategoryVerifyUserCode
	CategorySubscriptionsSynced = types.CategorySubscriptionsSynced
)

// 观察接口，观察者实现任意子集
type (
	MessageObserver          = pkgif.MessageObserver
	DeliveryObserver         = pkgif.DeliveryObserver
	MessageDeliveredObserver = pkgif.MessageDeliveredObserver
	ReachabilityObserver     = pkgif.ReachabilityObserver
	RegistrationObserver     = pkgif.RegistrationObserver
	ConnectionObserver       = pkgif.ConnectionObserver
	VerificationObserver     = pkgif.VerificationObserver
	VerifyUserCodeObserver   = pkgif.VerifyUserCodeObserver
)

// ════════════════════════════════════════════════════════════════════════════
//                              扩展点
// ════════════════════════════════════════════════════════════════════════════

type (
	// Transport 与推送服务器之间的传输
	Transport = pkgif.Transport

	// ReachabilitySource 网络可达性来源
	ReachabilitySource = pkgif.ReachabilitySource

	// BroadcastBus 进程级广播总线
	BroadcastBus = pkgif.BroadcastBus

	// Subscription 广播订阅
	Subscription = pkgif.Subscription
)
