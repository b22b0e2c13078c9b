package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message 推送消息
//
// 入站消息由 MessageTracker 按 ID 去重记录，出站消息在发布派发后记录。
// DeliveryAcked/ReadMarked/Dismissed 原地更新。
type Message struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	SenderID   string    `json:"sender_id,omitempty"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`

	DeliveryAcked bool `json:"delivery_acked"`
	ReadMarked    bool `json:"read_marked"`
	Dismissed     bool `json:"dismissed"`
	Outbound      bool `json:"outbound"`
}

// NewMessage 创建待发布消息，ID 为随机 UUID
func NewMessage(channel string, payload Payload) *Message {
	return &Message{
		ID:       uuid.NewString(),
		Channel:  channel,
		Payload:  payload,
		Outbound: true,
	}
}

// ValidateForPublish 校验发布所需字段
func (m *Message) ValidateForPublish() error {
	if m == nil {
		return ErrInvalidArgument.WithOp("publish", fmt.Errorf("nil message"))
	}
	if strings.TrimSpace(m.Channel) == "" {
		return ErrInvalidArgument.WithOp("publish", fmt.Errorf("empty channel"))
	}
	if len(m.Payload) == 0 {
		return ErrInvalidArgument.WithOp("publish", fmt.Errorf("empty payload"))
	}
	return nil
}

// Clone 深拷贝
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Payload = m.Payload.Clone()
	return &cp
}

// 入站原始载荷中的保留键
const (
	PushKeyID      = "id"
	PushKeyChannel = "channel"
	PushKeySender  = "sender"
	PushKeyPayload = "payload"
)

// MessageFromPush 将平台或服务器下发的原始载荷转换为 Message
//
// 必须包含字符串 "id"。存在 "payload" 映射时以其为消息体，
// 否则除保留键外的其余键构成消息体。
func MessageFromPush(raw map[string]any, receivedAt time.Time) (*Message, error) {
	if raw == nil {
		return nil, ErrInvalidArgument.WithOp("ingest", fmt.Errorf("nil payload"))
	}
	id, ok := raw[PushKeyID].(string)
	if !ok || id == "" {
		return nil, ErrInvalidArgument.WithOp("ingest", fmt.Errorf("missing message id"))
	}
	channel, _ := raw[PushKeyChannel].(string)
	sender, _ := raw[PushKeySender].(string)

	var body map[string]any
	if nested, ok := raw[PushKeyPayload].(map[string]any); ok {
		body = nested
	} else {
		body = make(map[string]any, len(raw))
		for k, v := range raw {
			switch k {
			case PushKeyID, PushKeyChannel, PushKeySender:
				continue
			}
			body[k] = v
		}
	}
	payload, err := PayloadFromRaw(body)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:         id,
		Channel:    channel,
		SenderID:   sender,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

// Delivery 服务器下发的投递回执
//
// 表示本设备此前发布的消息已送达某个接收方。
type Delivery struct {
	MessageID   string    `json:"message_id"`
	ReceiverID  string    `json:"receiver_id,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}
