package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/connection"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              基本连接
// ============================================================================

func TestConnect_OnReachable(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, types.ConnectingStart, h.m.State())

	h.connect()

	states := h.rec.States()
	require.Len(t, states, 2)
	assert.Equal(t, types.ConnectingStart, states[0].Previous)
	assert.Equal(t, types.Connecting, states[0].Current)
	assert.Equal(t, types.ReasonReachable, states[0].Reason)
	assert.Equal(t, types.Connected, states[1].Current)
	assert.Equal(t, types.ReasonHandshakeSucceeded, states[1].Reason)

	hellos := h.tr.Hellos()
	require.Len(t, hellos, 1)
	assert.Equal(t, Version, hellos[0].Version)
	assert.Empty(t, hellos[0].ApplicationID)

	assert.Equal(t, []types.ReachabilityStatus{wifi}, h.rec.Reach())
	assert.Equal(t, wifi, h.m.Reachability())
}

func TestConnect_AutoConnectDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Connection.AutoConnect = false
	h := newHarnessWithConfig(t, cfg)

	h.setReachable(true)
	h.eventually(func() bool { return len(h.rec.Reach()) == 1 }, "reachability event")
	h.m.Flush()
	assert.Equal(t, types.ConnectingStart, h.m.State())
	assert.Empty(t, h.tr.Hellos())

	require.NoError(t, h.m.Reconnect())
	h.waitState(types.Connected)
	assert.Equal(t, types.ReasonManualRetry, h.rec.States()[0].Reason)
}

func TestConnect_ReachabilityLostWhileConnecting(t *testing.T) {
	h := newHarness(t)
	h.tr.SetConnectFunc(func(ctx context.Context, _ types.Hello) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.setReachable(true)
	h.waitState(types.Connecting)
	h.setReachable(false)
	h.waitState(types.Disconnected)
	h.settle()

	states := h.rec.States()
	require.Len(t, states, 2)
	assert.Equal(t, types.Connecting, states[1].Previous)
	assert.Equal(t, types.Disconnected, states[1].Current)
	assert.Equal(t, types.ReasonReachabilityLost, states[1].Reason)
	assert.NoError(t, states[1].Err)
	assert.Equal(t, types.Disconnected, h.m.State())
}

// 被取消的握手在新尝试开始后才成功返回，不得影响新连接
func TestConnect_StaleHandshakeDoesNotCloseNewConnection(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	var mu sync.Mutex
	calls := 0
	h.tr.SetConnectFunc(func(context.Context, types.Hello) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			// 忽略取消，握手最终成功
			<-release
		}
		return nil
	})

	h.setReachable(true)
	h.waitState(types.Connecting)
	h.setReachable(false)
	h.waitState(types.Disconnected)
	h.setReachable(true)
	h.waitState(types.Connecting)

	// 上一次 Connect 尚未返回，新的握手不会并发发起
	assert.Len(t, h.tr.Hellos(), 1)

	unblock()
	h.waitState(types.Connected)
	h.settle()

	assert.True(t, h.tr.IsConnected(), "connected state must hold a live connection")
	assert.Len(t, h.tr.Hellos(), 2)
	assert.Equal(t, 1, h.tr.Closes())

	// 新连接可用
	h.registerApp()
	assert.Equal(t, types.Connected, h.m.State())
}

func TestConnect_ReachabilityLostWhileConnected(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.setReachable(false)
	h.waitState(types.Disconnected)

	last := h.rec.States()[len(h.rec.States())-1]
	assert.Equal(t, types.ReasonReachabilityLost, last.Reason)
	assert.NoError(t, last.Err)
	assert.False(t, h.tr.IsConnected())
	assert.Equal(t, 1, h.tr.Closes())

	// 不可达期间不安排重连
	h.clock.Add(time.Hour)
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 1)

	h.setReachable(true)
	h.waitState(types.Connected)
	assert.Len(t, h.tr.Hellos(), 2)
}

// ============================================================================
//                              退避重连
// ============================================================================

func TestConnect_HandshakeFailureRetriesWithBackoff(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	failures := 2
	h.tr.SetConnectFunc(func(context.Context, types.Hello) error {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	h.setReachable(true)
	h.waitState(types.DisconnectedError)
	h.settle()
	assert.Equal(t, types.CodeServerConnection, types.CodeOf(h.m.FailureError()))
	assert.ErrorIs(t, h.m.FailureError(), types.ErrConnectionFailed)

	// 退避未到期不重试
	h.clock.Add(500 * time.Millisecond)
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 1)

	h.clock.Add(2 * time.Second)
	h.eventually(func() bool { return len(h.tr.Hellos()) == 2 }, "first retry")
	h.settle()
	assert.Equal(t, types.DisconnectedError, h.m.State())

	h.clock.Add(5 * time.Second)
	h.waitState(types.Connected)

	var reasons []types.StateChangeReason
	for _, c := range h.rec.States() {
		if c.Current == types.Connecting {
			reasons = append(reasons, c.Reason)
		}
	}
	assert.Equal(t, []types.StateChangeReason{
		types.ReasonReachable,
		types.ReasonBackoffRetry,
		types.ReasonBackoffRetry,
	}, reasons)
}

func TestConnect_TransportDropRetries(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.drop(errors.New("connection reset by peer"))
	assert.Equal(t, types.DisconnectedError, h.m.State())
	last := h.rec.States()[len(h.rec.States())-1]
	assert.Equal(t, types.ReasonTransportClosed, last.Reason)
	assert.ErrorIs(t, last.Err, types.ErrConnectionFailed)

	h.clock.Add(2 * time.Second)
	h.waitState(types.Connected)
}

func TestConnect_GracefulCloseRetries(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.drop(nil)
	assert.Equal(t, types.Disconnected, h.m.State())

	h.clock.Add(2 * time.Second)
	h.waitState(types.Connected)
}

func TestConnect_ReconnectResetsBackoff(t *testing.T) {
	h := newHarness(t)
	h.tr.SetConnectFunc(func(context.Context, types.Hello) error {
		return errors.New("handshake timeout")
	})
	h.setReachable(true)
	h.waitState(types.DisconnectedError)
	h.settle()

	h.tr.SetConnectFunc(nil)
	require.NoError(t, h.m.Reconnect())
	h.waitState(types.Connected)

	// 已连接时为无操作
	require.NoError(t, h.m.Reconnect())
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 2)
}

func TestReconnect_Unreachable(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.Reconnect(), types.ErrNoConnection)
	assert.Empty(t, h.tr.Hellos())
}

// ============================================================================
//                              认证锁定
// ============================================================================

func TestAuthRejected_StopsAutoReconnect(t *testing.T) {
	h := newHarness(t)
	h.tr.SetConnectFunc(rejectAuth)

	h.setReachable(true)
	h.waitState(types.DisconnectedError)
	h.settle()
	require.True(t, h.m.AuthBlocked())

	last := h.rec.States()[len(h.rec.States())-1]
	assert.Equal(t, types.ReasonAuthRejected, last.Reason)
	assert.ErrorIs(t, last.Err, types.ErrAuthRejected)

	// 网络反复与退避到期都不触发重连
	h.setReachable(false)
	h.setReachable(true)
	h.eventually(func() bool { return len(h.rec.Reach()) == 3 }, "reachability events")
	h.clock.Add(time.Hour)
	h.settle()
	assert.Equal(t, types.DisconnectedError, h.m.State())
	assert.Len(t, h.tr.Hellos(), 1)

	assert.ErrorIs(t, h.m.Reconnect(), types.ErrAuthRejected)

	// 重新注册应用后恢复
	h.tr.SetConnectFunc(nil)
	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.eventually(h.m.IsRegistered, "application registration")
	h.m.Flush()
	assert.False(t, h.m.AuthBlocked())
	assert.Equal(t, types.Connected, h.m.State())

	states := h.rec.States()
	n := len(states)
	assert.Equal(t, types.DisconnectedError, states[n-2].Previous)
	assert.Equal(t, types.ReasonRegistration, states[n-2].Reason)
	assert.Equal(t, types.Connected, states[n-1].Current)

	hellos := h.tr.Hellos()
	require.Len(t, hellos, 2)
	assert.Empty(t, hellos[1].ApplicationID)
}

func TestAuthRejected_ReRegisterWhileUnreachable(t *testing.T) {
	h := newHarness(t)
	h.tr.SetConnectFunc(rejectAuth)
	h.setReachable(true)
	h.waitState(types.DisconnectedError)
	h.settle()

	h.setReachable(false)
	h.eventually(func() bool { return len(h.rec.Reach()) == 2 }, "reachability lost")

	h.tr.SetConnectFunc(nil)
	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.m.Flush()
	assert.Equal(t, types.DisconnectedError, h.m.State())
	assert.False(t, h.m.AuthBlocked())

	h.setReachable(true)
	h.waitState(types.Connected)
	h.eventually(h.m.IsRegistered, "application registration")
}

func TestAuthRejected_OnTransportClose(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()

	h.drop(types.ErrAuthRejected.WithOp("session", errors.New("token revoked")))
	assert.Equal(t, types.DisconnectedError, h.m.State())
	assert.True(t, h.m.AuthBlocked())

	h.clock.Add(time.Hour)
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 1)
}

// rejectAuthResponse 以认证拒绝应答请求
func rejectAuthResponse(*types.Request) *types.Response {
	return &types.Response{OK: false, Reason: types.ResponseReasonAuth, Message: "invalid credentials"}
}

func TestAuthRejected_AppRegistrationResponse(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.tr.Handle(types.OpAppRegister, rejectAuthResponse)

	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.waitState(types.DisconnectedError)
	h.settle()

	regs := h.rec.Registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, types.RegistrationApplication, regs[0].Kind)
	assert.ErrorIs(t, regs[0].Err, types.ErrAuthRejected)
	assert.Equal(t, types.CodeFailRegisterApplication, types.CodeOf(regs[0].Err))

	last := h.rec.States()[len(h.rec.States())-1]
	assert.Equal(t, types.Connected, last.Previous)
	assert.Equal(t, types.ReasonAuthRejected, last.Reason)
	assert.ErrorIs(t, last.Err, types.ErrAuthRejected)
	assert.True(t, h.m.AuthBlocked())
	assert.False(t, h.m.IsRegistered())
	assert.False(t, h.tr.IsConnected())

	// 不自动重连
	h.clock.Add(time.Hour)
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 1)
	assert.Equal(t, types.DisconnectedError, h.m.State())

	// 换正确凭据重新注册后恢复
	h.tr.Handle(types.OpAppRegister, nil)
	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.eventually(h.m.IsRegistered, "application registration")
	h.m.Flush()
	assert.False(t, h.m.AuthBlocked())
	assert.Equal(t, types.Connected, h.m.State())
}

func TestAuthRejected_UserRegistrationResponse(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Handle(types.OpUserRegister, rejectAuthResponse)

	require.NoError(t, h.m.RegisterUser(testUserA, UserOptions{}))
	h.waitState(types.DisconnectedError)
	h.settle()

	regs := h.rec.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, types.RegistrationUser, regs[1].Kind)
	assert.ErrorIs(t, regs[1].Err, types.ErrAuthRejected)
	assert.Equal(t, types.CodeFailRegisterUser, types.CodeOf(regs[1].Err))
	assert.Empty(t, h.m.UserID())

	last := h.rec.States()[len(h.rec.States())-1]
	assert.Equal(t, types.ReasonAuthRejected, last.Reason)
	assert.True(t, h.m.AuthBlocked())
	assert.False(t, h.tr.IsConnected())

	h.setReachable(false)
	h.setReachable(true)
	h.eventually(func() bool { return len(h.rec.Reach()) == 3 }, "reachability events")
	h.clock.Add(time.Hour)
	h.m.Flush()
	assert.Len(t, h.tr.Hellos(), 1)
}

// ============================================================================
//                              前后台
// ============================================================================

func TestBackground_SuspendsRetries(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.m.OnBackground()
	h.m.Flush()
	// 进入后台不断开
	assert.Equal(t, types.Connected, h.m.State())

	h.drop(errors.New("connection reset"))
	h.clock.Add(time.Hour)
	h.m.Flush()
	assert.Equal(t, types.DisconnectedError, h.m.State())
	assert.Len(t, h.tr.Hellos(), 1)

	h.m.OnForeground()
	h.waitState(types.Connected)
	last := h.rec.States()[len(h.rec.States())-2]
	assert.Equal(t, types.ReasonForeground, last.Reason)
}

// ============================================================================
//                              状态序列性质
// ============================================================================

// 任意事件序列下，状态事件首尾相接、合法且从不自环
func TestStateChanges_RandomSequence(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(42))

	var mu sync.Mutex
	fail := false
	h.tr.SetConnectFunc(func(context.Context, types.Hello) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("dial refused")
		}
		return nil
	})

	for i := 0; i < 150; i++ {
		switch rng.Intn(6) {
		case 0:
			h.setReachable(true)
		case 1:
			h.setReachable(false)
		case 2:
			h.tr.Drop(errors.New("reset"))
		case 3:
			h.tr.Drop(nil)
		case 4:
			h.clock.Add(5 * time.Minute)
		case 5:
			mu.Lock()
			fail = rng.Intn(2) == 0
			mu.Unlock()
		}
		if rng.Intn(3) == 0 {
			h.settle()
		}
	}
	h.settle()

	states := h.rec.States()
	require.NotEmpty(t, states)
	prev := types.ConnectingStart
	for i, c := range states {
		assert.Equal(t, prev, c.Previous, "event %d does not chain", i)
		assert.NotEqual(t, c.Previous, c.Current, "event %d is a self transition", i)
		assert.True(t, connection.CanTransition(c.Previous, c.Current), "event %d: %s -> %s", i, c.Previous, c.Current)
		prev = c.Current
	}
	assert.Equal(t, prev, h.m.State())
}

// ============================================================================
//                              关闭
// ============================================================================

func TestStop_ClosesConnection(t *testing.T) {
	h := newHarness(t)
	h.connect()

	require.NoError(t, h.m.Stop(context.Background()))
	assert.False(t, h.tr.IsConnected())
	assert.Equal(t, types.Disconnected, h.m.State())
	assert.ErrorIs(t, h.m.Subscribe("news"), types.ErrClosed)
	assert.ErrorIs(t, h.m.Reconnect(), types.ErrClosed)

	// 重复关闭
	require.NoError(t, h.m.Stop(context.Background()))
}
