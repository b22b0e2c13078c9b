package session

import (
	"context"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              状态转换
// ============================================================================

// transition 执行状态转换并恰好发出一次事件
func (m *Manager) transition(to types.ConnectionState, reason types.StateChangeReason, err error) bool {
	change, terr := m.machine.Transition(to, reason, err)
	if terr != nil {
		logger.Debug("忽略非法状态转换",
			"from", m.machine.State().String(),
			"to", to.String(),
			"reason", reason.String())
		return false
	}
	m.metrics.ConnectionTransition(to)
	if err != nil {
		m.setFailure(err)
	}
	logger.Info("连接状态变更",
		"from", change.Previous.String(),
		"to", change.Current.String(),
		"reason", reason.String())
	if to == types.Connected && m.notifier != nil {
		m.notifier.SetConnected()
	}
	m.emit(types.ConnectionChangedEvent{Change: change}, nil)
	return true
}

// ============================================================================
//                              可达性
// ============================================================================

func (m *Manager) onReachability(status types.ReachabilityStatus) {
	status = status.Normalize()
	prev := m.reach
	if status == prev || m.closed {
		return
	}
	m.reach = status
	m.emit(types.ReachabilityChangedEvent{Status: status}, nil)

	if !status.Reachable {
		m.onReachabilityLost()
		return
	}
	if !prev.Reachable {
		m.autoConnect(types.ReasonReachable)
	}
}

// onReachabilityLost 取消进行中的尝试与重连定时器
//
// 没有确定的故障，因此进入 Disconnected 而非 DisconnectedError。
func (m *Manager) onReachabilityLost() {
	m.cancelRetry()
	switch m.machine.State() {
	case types.Connecting:
		m.abortAttempt()
		m.transition(types.Disconnected, types.ReasonReachabilityLost, nil)
	case types.Connected:
		m.connectionLost()
		if err := m.transport.Close(); err != nil {
			logger.Debug("关闭传输层失败", "err", err)
		}
		m.transition(types.Disconnected, types.ReasonReachabilityLost, nil)
	}
}

// ============================================================================
//                              连接尝试
// ============================================================================

// autoConnect 自动触发的连接，受前后台与配置约束
func (m *Manager) autoConnect(reason types.StateChangeReason) {
	if m.background || !m.cfg.Connection.AutoConnect {
		return
	}
	m.connect(reason)
}

// connect 在条件允许时发起一次连接尝试
//
// 认证锁定、网络不可达、已连接或已有尝试进行中时不做任何事。
func (m *Manager) connect(reason types.StateChangeReason) {
	if m.closed || m.attempt != nil || !m.reach.Reachable {
		return
	}
	if m.machine.State() == types.Connected || !m.machine.CanAutoConnect() {
		return
	}
	m.cancelRetry()
	if !m.transition(types.Connecting, reason, nil) {
		return
	}

	m.attemptGen++
	m.attempt = &attempt{gen: m.attemptGen}
	m.metrics.ConnectAttempt()
	if m.dialing {
		// 被取消的握手仍在进行，它返回后再发起，传输层同一时刻只有一个 Connect
		logger.Debug("等待上一次握手返回", "generation", m.attemptGen)
		return
	}
	m.dial()
}

// dial 为当前尝试启动握手
func (m *Manager) dial() {
	a := m.attempt
	timeout := m.cfg.Server.HandshakeTimeout.Duration()
	var ctx context.Context
	if timeout > 0 {
		ctx, a.cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, a.cancel = context.WithCancel(context.Background())
	}
	m.dialing = true

	gen := a.gen
	hello := m.hello()
	go func() {
		err := m.transport.Connect(ctx, hello)
		m.post(func() { m.onAttemptDone(gen, err) })
	}()
}

// hello 握手信息
//
// 有未完成的应用注册时不携带旧的应用与用户身份，由注册请求重新建立。
func (m *Manager) hello() types.Hello {
	id := m.identity.Snapshot()
	h := types.Hello{DeviceToken: id.DeviceToken, Version: Version}
	if !m.registrar.AppOutstanding() {
		h.ApplicationID = id.ApplicationID
		h.UserID = id.UserID
	}
	return h
}

func (m *Manager) abortAttempt() {
	if m.attempt == nil {
		return
	}
	if m.attempt.cancel != nil {
		m.attempt.cancel()
	}
	m.attempt = nil
}

func (m *Manager) onAttemptDone(gen uint64, err error) {
	m.dialing = false
	if m.attempt == nil || m.attempt.gen != gen {
		if err == nil {
			// 没有其他握手在进行，传输层持有的只可能是这次过期的连接
			logger.Debug("丢弃过期的连接结果并关闭连接", "generation", gen)
			_ = m.transport.Close()
		}
		if m.attempt != nil {
			m.dial()
		}
		return
	}
	m.attempt.cancel()
	m.attempt = nil

	switch {
	case err == nil:
		m.transition(types.Connected, types.ReasonHandshakeSucceeded, nil)
		m.backoff.Reset()
		m.epoch++
		m.onConnected()
	case types.IsAuthError(err):
		m.machine.BlockAuth()
		logger.Warn("服务器拒绝身份，停止自动重连", "err", err)
		m.transition(types.DisconnectedError, types.ReasonAuthRejected, err)
	default:
		m.transition(types.DisconnectedError, types.ReasonHandshakeFailed, connectionError("connect", err))
		m.scheduleRetry()
	}
}

// connectionError 未分类的错误归为连接失败
func connectionError(op string, err error) error {
	if types.KindOf(err) != types.KindUnknown {
		return err
	}
	return types.ErrConnectionFailed.WithOp(op, err)
}

// onConnected 派发待处理的注册，然后按顺序重放离线队列
func (m *Manager) onConnected() {
	m.dispatchRegistrations()
	m.flushOutbox()
}

// ============================================================================
//                              断线
// ============================================================================

func (m *Manager) onTransportClosed(err error) {
	if m.machine.State() != types.Connected {
		return
	}
	m.connectionLost()

	switch {
	case err == nil:
		m.transition(types.Disconnected, types.ReasonTransportClosed, nil)
	case types.IsAuthError(err):
		m.machine.BlockAuth()
		logger.Warn("服务器撤销身份，停止自动重连", "err", err)
		m.transition(types.DisconnectedError, types.ReasonAuthRejected, err)
		return
	default:
		m.transition(types.DisconnectedError, types.ReasonTransportClosed, connectionError("transport", err))
	}
	m.scheduleRetry()
}

// connectionLost 已发出的注册退回待发送
func (m *Manager) connectionLost() {
	m.registrar.RequeueAll()
}

// rejectIdentity 服务器在请求应答中拒绝身份
//
// 与握手被拒同等处理：设置认证锁存并断开，进入 DisconnectedError，
// 直到重新注册应用才恢复自动重连。
func (m *Manager) rejectIdentity(err error) {
	m.machine.BlockAuth()
	m.cancelRetry()
	if m.machine.State() != types.Connected {
		return
	}
	logger.Warn("服务器拒绝身份，断开并停止自动重连", "err", err)
	m.connectionLost()
	if cerr := m.transport.Close(); cerr != nil {
		logger.Debug("关闭传输层失败", "err", cerr)
	}
	m.transition(types.DisconnectedError, types.ReasonAuthRejected, err)
}

// ============================================================================
//                              退避重连
// ============================================================================

func (m *Manager) scheduleRetry() {
	if m.closed || m.background || !m.cfg.Connection.AutoConnect {
		return
	}
	if m.machine.AuthBlocked() || !m.reach.Reachable {
		return
	}
	m.cancelRetry()

	delay := m.backoff.Next()
	m.metrics.BackoffScheduled(delay)
	gen := m.retryGen
	m.retryTimer = m.clock.AfterFunc(delay, func() {
		m.post(func() { m.onRetryTimer(gen) })
	})
	logger.Debug("已安排重连", "delay", delay, "attempt", m.backoff.Attempt())
}

func (m *Manager) onRetryTimer(gen uint64) {
	if gen != m.retryGen || m.retryTimer == nil {
		return
	}
	m.retryTimer = nil
	m.autoConnect(types.ReasonBackoffRetry)
}

// cancelRetry 停止定时器，已触发但未执行的回调按代号丢弃
func (m *Manager) cancelRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.retryGen++
}

// ============================================================================
//                              显式控制
// ============================================================================

// Reconnect 立即发起连接并重置退避
//
// 认证锁定时返回 ErrAuthRejected，需先重新注册应用；
// 网络不可达时返回 ErrNoConnection。已连接或正在连接时无操作。
func (m *Manager) Reconnect() error {
	return m.do(func() error {
		if m.machine.AuthBlocked() {
			return types.ErrAuthRejected.WithOp("reconnect", m.machine.LastError())
		}
		if !m.reach.Reachable {
			return types.ErrNoConnection.WithOp("reconnect", nil)
		}
		if m.attempt != nil || m.machine.State() == types.Connected {
			return nil
		}
		m.backoff.Reset()
		m.connect(types.ReasonManualRetry)
		return nil
	})
}

// OnBackground 应用进入后台，暂停重连调度，不断开现有连接
func (m *Manager) OnBackground() {
	m.post(func() {
		if m.background {
			return
		}
		m.background = true
		m.cancelRetry()
		logger.Debug("进入后台，暂停重连")
	})
}

// OnForeground 应用回到前台，恢复重连
func (m *Manager) OnForeground() {
	m.post(func() {
		if !m.background {
			return
		}
		m.background = false
		logger.Debug("回到前台，恢复重连")
		m.autoConnect(types.ReasonForeground)
	})
}
