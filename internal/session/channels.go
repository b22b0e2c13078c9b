package session

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-pushclient/internal/protocol/registration"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              订阅
// ============================================================================

// Subscribe 订阅频道
//
// 对本地缓存幂等。服务器请求进入离线队列，已连接时立即发出，
// 否则在下一次 Connected 后按顺序重放。
func (m *Manager) Subscribe(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return types.ErrInvalidArgument.WithOp("subscribe", fmt.Errorf("empty channel"))
	}
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("subscribe", nil)
		}
		added := false
		if _, err := m.identity.Update(func(id *types.Identity) error {
			added = id.AddChannels(channel) > 0
			return nil
		}); err != nil {
			return storageError("subscribe", err)
		}
		if !added {
			return nil
		}
		// 未发出的退订与本次订阅相互抵消
		if m.outbox.Remove(types.OpChannelUnsub, channel) > 0 {
			m.metrics.OutboxDepth(m.outbox.Len())
			return nil
		}
		m.enqueue(types.OpChannelSubscribe, types.ChannelRequest{Channel: channel}, channel)
		return nil
	})
}

// Unsubscribe 退订频道，未订阅时无操作
func (m *Manager) Unsubscribe(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return types.ErrInvalidArgument.WithOp("unsubscribe", fmt.Errorf("empty channel"))
	}
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("unsubscribe", nil)
		}
		removed := false
		if _, err := m.identity.Update(func(id *types.Identity) error {
			removed = id.RemoveChannel(channel)
			return nil
		}); err != nil {
			return storageError("unsubscribe", err)
		}
		if !removed {
			return nil
		}
		if m.outbox.Remove(types.OpChannelSubscribe, channel) > 0 {
			m.metrics.OutboxDepth(m.outbox.Len())
			return nil
		}
		m.enqueue(types.OpChannelUnsub, types.ChannelRequest{Channel: channel}, channel)
		return nil
	})
}

// SyncSubscriptions 向服务器拉取权威频道列表并替换本地缓存
//
// 要求 Connected。结果经 SubscriptionsSyncedEvent 送达。
func (m *Manager) SyncSubscriptions(cb Handler) error {
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("sync_subscriptions", nil)
		}
		if m.machine.State() != types.Connected {
			return types.ErrNotConnected.WithOp("sync_subscriptions", nil)
		}
		req, err := types.NewRequest(types.OpChannelList, nil)
		if err != nil {
			return err
		}
		m.send(req, func(resp *types.Response, err error) {
			m.onChannelList(cb, resp, err)
		})
		return nil
	})
}

func (m *Manager) onChannelList(cb Handler, resp *types.Response, err error) {
	failure := responseError(types.OpChannelList, types.CodeServerConnection, resp, err)
	var result types.ChannelsResult
	if failure == nil {
		if derr := resp.Decode(&result); derr != nil {
			failure = types.ErrRejected.WithOp(string(types.OpChannelList), derr).WithCode(types.CodeServerConnection)
		}
	}
	if failure == nil {
		updated, serr := m.identity.Update(func(id *types.Identity) error {
			id.Channels = nil
			id.AddChannels(result.Channels...)
			return nil
		})
		if serr != nil {
			failure = storageError("sync_subscriptions", serr)
		} else {
			result.Channels = updated.Channels
		}
	}

	if failure != nil {
		logger.Warn("同步订阅失败", "err", failure)
		m.emit(types.SubscriptionsSyncedEvent{Err: failure}, cb)
		return
	}
	logger.Debug("订阅已同步", "channels", len(result.Channels))
	m.emit(types.SubscriptionsSyncedEvent{Channels: result.Channels}, cb)
}

// ============================================================================
//                              离线队列
// ============================================================================

// enqueue 追加到离线队列，已连接时立即发出
func (m *Manager) enqueue(op types.Op, body any, subject string) {
	req, err := types.NewRequest(op, body)
	if err != nil {
		logger.Warn("编码请求失败", "op", op, "err", err)
		return
	}
	m.outbox.Enqueue(req, subject, m.clock.Now())
	m.metrics.OutboxDepth(m.outbox.Len())
	if m.machine.State() == types.Connected {
		m.flushOutbox()
	}
}

// flushOutbox 按入队顺序发出全部离线请求
func (m *Manager) flushOutbox() {
	items := m.outbox.Drain(m.clock.Now())
	m.metrics.OutboxDepth(0)
	if len(items) > 0 {
		logger.Debug("重放离线请求", "count", len(items))
	}
	for _, item := range items {
		item := item
		m.send(item.Request, func(resp *types.Response, err error) {
			m.onOutboxResponse(item, resp, err)
		})
	}
}

func (m *Manager) onOutboxResponse(item registration.PendingRequest, resp *types.Response, err error) {
	if err != nil {
		// 未得到响应，放回队列等待下一次发送
		m.outbox.Requeue(item, err)
		m.metrics.OutboxDepth(m.outbox.Len())
		logger.Debug("请求未得到响应，已放回离线队列",
			"op", item.Request.Op,
			"attempts", item.Attempts,
			"err", err)
		return
	}

	op := item.Request.Op
	if rerr := resp.Err(op, types.CodeServerConnection); rerr != nil {
		logger.Warn("服务器拒绝请求", "op", op, "subject", item.Subject, "err", rerr)
		if op == types.OpChannelSubscribe {
			// 订阅被拒绝，撤销本地缓存
			if _, serr := m.identity.Update(func(id *types.Identity) error {
				id.RemoveChannel(item.Subject)
				return nil
			}); serr != nil {
				logger.Warn("撤销本地订阅失败", "channel", item.Subject, "err", serr)
			}
		}
		return
	}

	if op == types.OpMessageAck {
		if _, merr := m.tracker.MarkDelivered(item.Subject); merr != nil {
			logger.Debug("回执对应的消息已移除", "id", item.Subject)
		}
	}
}
