package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              发布
// ============================================================================

// Publish 发布消息
//
// 要求 Connected，否则返回 ErrNotConnected 且不留下任何记录。
// msg.ID 为空时自动分配并写回。派发后才记入追踪器，
// 服务器确认经 MessageDeliveredEvent 送达。
func (m *Manager) Publish(msg *types.Message) error {
	if err := msg.ValidateForPublish(); err != nil {
		return err
	}
	return m.do(func() error {
		if m.machine.State() != types.Connected {
			return types.ErrNotConnected.WithOp("publish", nil)
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		out := msg.Clone()
		out.Outbound = true

		req, err := types.NewRequest(types.OpMessagePublish, types.PublishRequest{
			ID:      out.ID,
			Channel: out.Channel,
			Payload: out.Payload,
		})
		if err != nil {
			return err
		}
		if err := m.tracker.TrackOutbound(out); err != nil {
			return err
		}
		m.metrics.MessagePublished()
		m.send(req, func(resp *types.Response, err error) {
			m.onPublishResponse(out.ID, resp, err)
		})
		return nil
	})
}

func (m *Manager) onPublishResponse(id string, resp *types.Response, err error) {
	failure := responseError(types.OpMessagePublish, types.CodeFailPublish, resp, err)

	var stored *types.Message
	if failure == nil {
		stored, _ = m.tracker.MarkDelivered(id)
	} else {
		stored, _ = m.tracker.Get(id)
		logger.Warn("消息发布失败", "id", log.TruncateID(id, 8), "err", failure)
	}
	if stored == nil {
		// 嵌入方已移除记录
		stored = &types.Message{ID: id, Outbound: true, DeliveryAcked: failure == nil}
	}
	m.emit(types.MessageDeliveredEvent{Message: stored, Err: failure}, nil)
}

// ============================================================================
//                              推送与入站消息
// ============================================================================

func (m *Manager) handlePush(push *types.Push) {
	if push == nil {
		return
	}
	switch push.Kind {
	case types.PushMessage:
		var in types.InboundMessage
		if err := decodePush(push, &in); err != nil {
			logger.Warn("丢弃无法解析的消息推送", "err", err)
			return
		}
		m.ingest(&types.Message{
			ID:         in.ID,
			Channel:    in.Channel,
			SenderID:   in.SenderID,
			Payload:    in.Payload,
			ReceivedAt: m.clock.Now(),
		})
	case types.PushDelivery:
		var d types.Delivery
		if err := decodePush(push, &d); err != nil || d.MessageID == "" {
			logger.Warn("丢弃无法解析的投递回执", "err", err)
			return
		}
		if d.DeliveredAt.IsZero() {
			d.DeliveredAt = m.clock.Now()
		}
		if _, err := m.tracker.MarkDelivered(d.MessageID); err != nil {
			logger.Debug("投递回执对应的消息未记录", "id", log.TruncateID(d.MessageID, 8))
		}
		m.emit(types.DeliveryReceivedEvent{Delivery: d}, nil)
	default:
		logger.Debug("忽略未知推送类型", "kind", push.Kind)
	}
}

func decodePush(push *types.Push, v any) error {
	if len(push.Body) == 0 {
		return fmt.Errorf("empty push body")
	}
	return json.Unmarshal(push.Body, v)
}

// ingest 去重后记录并发出消息事件，随后排队回执
func (m *Manager) ingest(msg *types.Message) {
	stored, dup, err := m.tracker.Ingest(msg)
	if err != nil {
		logger.Warn("丢弃无效消息", "err", err)
		return
	}
	m.metrics.MessageReceived(dup)
	if dup {
		return
	}
	m.emit(types.MessageReceivedEvent{Message: stored}, nil)
	m.enqueue(types.OpMessageAck, types.MessageRefRequest{MessageID: stored.ID}, stored.ID)
}

// HandleRemoteNotification 接收操作系统通知通道送达的原始载荷
//
// 载荷必须包含字符串 "id"，值只允许字符串、数值与嵌套映射。
func (m *Manager) HandleRemoteNotification(raw map[string]any) error {
	msg, err := types.MessageFromPush(raw, m.clock.Now())
	if err != nil {
		return err
	}
	return m.do(func() error {
		m.ingest(msg)
		return nil
	})
}

// ============================================================================
//                              已读与忽略
// ============================================================================

// MarkAsRead 标记已读，未知 ID 返回 ErrMessageNotFound
func (m *Manager) MarkAsRead(id string) error {
	return m.mark(id, types.OpMessageRead)
}

// MarkDismissed 标记忽略，未知 ID 返回 ErrMessageNotFound
func (m *Manager) MarkDismissed(id string) error {
	return m.mark(id, types.OpMessageDismiss)
}

func (m *Manager) mark(id string, op types.Op) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.ErrInvalidArgument.WithOp(string(op), fmt.Errorf("empty message id"))
	}
	return m.do(func() error {
		var err error
		if op == types.OpMessageRead {
			_, err = m.tracker.MarkRead(id)
		} else {
			_, err = m.tracker.MarkDismissed(id)
		}
		if err != nil {
			return err
		}
		m.enqueue(op, types.MessageRefRequest{MessageID: id}, id)
		return nil
	})
}

// ============================================================================
//                              设备令牌与崩溃上报
// ============================================================================

// SetDeviceToken 记录操作系统分配的设备令牌
//
// 应用已注册时向服务器排队更新，否则随下一次应用注册一并提交。
func (m *Manager) SetDeviceToken(token []byte) error {
	if len(token) == 0 {
		return types.ErrInvalidArgument.WithOp("set_device_token", fmt.Errorf("empty token"))
	}
	token = append([]byte(nil), token...)
	return m.updateDeviceToken("set_device_token", token)
}

// RemoveDeviceToken 清除设备令牌
func (m *Manager) RemoveDeviceToken() error {
	return m.updateDeviceToken("remove_device_token", nil)
}

func (m *Manager) updateDeviceToken(op string, token []byte) error {
	return m.do(func() error {
		id, err := m.identity.Update(func(id *types.Identity) error {
			id.DeviceToken = token
			return nil
		})
		if err != nil {
			return storageError(op, err)
		}
		if id.IsApplicationRegistered() {
			m.outbox.RemoveOps(types.OpDeviceToken)
			m.enqueue(types.OpDeviceToken, types.DeviceTokenRequest{Token: token}, "")
		}
		return nil
	})
}

// ReportCrash 向服务器排队上报崩溃信息，不落盘
func (m *Manager) ReportCrash(info map[string]any) error {
	payload, err := types.PayloadFromRaw(info)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return types.ErrInvalidArgument.WithOp("report_crash", fmt.Errorf("empty crash info"))
	}
	return m.do(func() error {
		m.enqueue(types.OpCrashReport, types.CrashReportRequest{Info: payload}, "")
		return nil
	})
}
