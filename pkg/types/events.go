package types

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// 事件类别名称，同时作为进程级广播的键
const (
	CategoryMessageReceived     = "pushclient.message.received"
	CategoryMessageDelivered    = "pushclient.message.delivered"
	CategoryDeliveryReceived    = "pushclient.delivery.received"
	CategoryReachabilityChanged = "pushclient.reachability.changed"
	CategoryRegistration        = "pushclient.registration"
	CategoryConnectionChanged   = "pushclient.connection.changed"
	CategoryVerificationCode    = "pushclient.verification.code"
	CategoryVerifyUserCode      = "pushclient.verification.verify"
	CategorySubscriptionsSynced = "pushclient.subscriptions.synced"
)

// AllCategories 所有事件类别
var AllCategories = []string{
	CategoryMessageReceived,
	CategoryMessageDelivered,
	CategoryDeliveryReceived,
	CategoryReachabilityChanged,
	CategoryRegistration,
	CategoryConnectionChanged,
	CategoryVerificationCode,
	CategoryVerifyUserCode,
	CategorySubscriptionsSynced,
}

// Event 内部事件流中的事件
type Event interface {
	// Category 返回事件类别
	Category() string

	// Broadcast 返回广播用的最小载荷
	Broadcast() map[string]any
}

func withErr(m map[string]any, err error) map[string]any {
	if err != nil {
		m["error"] = err.Error()
		m["error_code"] = int(CodeOf(err))
	}
	return m
}

// ============================================================================
//                              消息事件
// ============================================================================

// MessageReceivedEvent 收到新消息（去重后）
type MessageReceivedEvent struct {
	Message *Message
}

// Category 实现 Event
func (MessageReceivedEvent) Category() string { return CategoryMessageReceived }

// Broadcast 实现 Event
func (e MessageReceivedEvent) Broadcast() map[string]any {
	return map[string]any{"id": e.Message.ID, "channel": e.Message.Channel}
}

// MessageDeliveredEvent 本地发布的消息被服务器确认（或失败）
type MessageDeliveredEvent struct {
	Message *Message
	Err     error
}

// Category 实现 Event
func (MessageDeliveredEvent) Category() string { return CategoryMessageDelivered }

// Broadcast 实现 Event
func (e MessageDeliveredEvent) Broadcast() map[string]any {
	return withErr(map[string]any{
		"id":        e.Message.ID,
		"channel":   e.Message.Channel,
		"delivered": e.Err == nil,
	}, e.Err)
}

// DeliveryReceivedEvent 收到投递回执
type DeliveryReceivedEvent struct {
	Delivery Delivery
}

// Category 实现 Event
func (DeliveryReceivedEvent) Category() string { return CategoryDeliveryReceived }

// Broadcast 实现 Event
func (e DeliveryReceivedEvent) Broadcast() map[string]any {
	return map[string]any{"message_id": e.Delivery.MessageID, "receiver_id": e.Delivery.ReceiverID}
}

// ============================================================================
//                              连接与可达性事件
// ============================================================================

// ReachabilityChangedEvent 网络可达性变化
type ReachabilityChangedEvent struct {
	Status ReachabilityStatus
}

// Category 实现 Event
func (ReachabilityChangedEvent) Category() string { return CategoryReachabilityChanged }

// Broadcast 实现 Event
func (e ReachabilityChangedEvent) Broadcast() map[string]any {
	return map[string]any{"reachable": e.Status.Reachable, "network_type": int(e.Status.NetworkType)}
}

// ConnectionChangedEvent 连接状态转换
type ConnectionChangedEvent struct {
	Change StateChange
}

// Category 实现 Event
func (ConnectionChangedEvent) Category() string { return CategoryConnectionChanged }

// Broadcast 实现 Event
func (e ConnectionChangedEvent) Broadcast() map[string]any {
	return withErr(map[string]any{
		"previous": int(e.Change.Previous),
		"state":    int(e.Change.Current),
		"reason":   e.Change.Reason.String(),
	}, e.Change.Err)
}

// ============================================================================
//                              注册与验证事件
// ============================================================================

// RegistrationKind 注册类型
type RegistrationKind int

const (
	// RegistrationApplication 应用注册
	RegistrationApplication RegistrationKind = iota
	// RegistrationUser 用户注册
	RegistrationUser
)

// String 返回注册类型字符串
func (k RegistrationKind) String() string {
	if k == RegistrationUser {
		return "user"
	}
	return "application"
}

// RegistrationEvent 应用或用户注册结果
type RegistrationEvent struct {
	Kind          RegistrationKind
	ApplicationID string
	UserID        string
	Registered    bool
	Err           error
}

// Category 实现 Event
func (RegistrationEvent) Category() string { return CategoryRegistration }

// Broadcast 实现 Event
func (e RegistrationEvent) Broadcast() map[string]any {
	return withErr(map[string]any{
		"kind":           e.Kind.String(),
		"application_id": e.ApplicationID,
		"user_id":        e.UserID,
		"registered":     e.Registered,
	}, e.Err)
}

// VerificationCodeEvent 验证码请求结果
type VerificationCodeEvent struct {
	UserID string
	Media  string
	Sent   bool
	Err    error
}

// Category 实现 Event
func (VerificationCodeEvent) Category() string { return CategoryVerificationCode }

// Broadcast 实现 Event
func (e VerificationCodeEvent) Broadcast() map[string]any {
	return withErr(map[string]any{"user_id": e.UserID, "sent": e.Sent}, e.Err)
}

// VerifyUserCodeEvent 验证码校验结果
type VerifyUserCodeEvent struct {
	UserID   string
	Verified bool
	Err      error
}

// Category 实现 Event
func (VerifyUserCodeEvent) Category() string { return CategoryVerifyUserCode }

// Broadcast 实现 Event
func (e VerifyUserCodeEvent) Broadcast() map[string]any {
	return withErr(map[string]any{"user_id": e.UserID, "verified": e.Verified}, e.Err)
}

// ============================================================================
//                              订阅同步事件
// ============================================================================

// SubscriptionsSyncedEvent 与服务器同步订阅列表的结果
//
// 没有对应的观察者接口，只经由类别处理函数、广播与单次回调送达。
type SubscriptionsSyncedEvent struct {
	Channels []string
	Err      error
}

// Category 实现 Event
func (SubscriptionsSyncedEvent) Category() string { return CategorySubscriptionsSynced }

// Broadcast 实现 Event
func (e SubscriptionsSyncedEvent) Broadcast() map[string]any {
	return withErr(map[string]any{
		"channels": append([]string(nil), e.Channels...),
		"synced":   e.Err == nil,
	}, e.Err)
}
