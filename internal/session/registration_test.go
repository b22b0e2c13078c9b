package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/pkg/types"
)

func rejectWith(code types.Code) func(*types.Request) *types.Response {
	return func(req *types.Request) *types.Response {
		return &types.Response{ID: req.ID, Code: int(code), Message: "denied"}
	}
}

// ============================================================================
//                              应用注册
// ============================================================================

func TestRegisterApplication_Validation(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.m.RegisterApplication("  ", testCreds), types.ErrInvalidArgument)
	assert.ErrorIs(t, h.m.RegisterApplication(testApp, types.Credentials{}), types.ErrInvalidArgument)
	h.m.Flush()
	assert.Empty(t, h.rec.Registrations())
	assert.Empty(t, h.tr.Hellos())
}

func TestRegisterApplication_ConnectsWhenNeeded(t *testing.T) {
	h := newHarness(t)
	h.setReachable(true)
	h.waitState(types.Connected)

	h.registerApp()
	regs := h.rec.Registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, types.RegistrationApplication, regs[0].Kind)
	assert.Equal(t, testApp, regs[0].ApplicationID)
	assert.True(t, regs[0].Registered)
	assert.NoError(t, regs[0].Err)

	reqs := h.tr.Requests(types.OpAppRegister)
	require.Len(t, reqs, 1)
	var body types.AppRegisterRequest
	require.NoError(t, reqs[0].Decode(&body))
	assert.Equal(t, testApp, body.ApplicationID)
	assert.Equal(t, testCreds.Username, body.Username)
	assert.Equal(t, testCreds.Password, body.Password)
}

func TestRegisterApplication_Rejected(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.tr.Handle(types.OpAppRegister, rejectWith(types.CodeNone))

	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.eventually(func() bool { return len(h.rec.Registrations()) == 1 }, "registration event")
	h.m.Flush()

	ev := h.rec.Registrations()[0]
	assert.False(t, ev.Registered)
	assert.Equal(t, types.CodeFailRegisterApplication, types.CodeOf(ev.Err))
	assert.ErrorIs(t, ev.Err, types.ErrRejected)
	assert.False(t, h.m.IsRegistered())
	assert.Equal(t, types.CodeFailRegisterApplication, types.CodeOf(h.m.FailureError()))
}

func TestRegisterApplication_RequeuedAcrossDrop(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.tr.Hold(types.OpAppRegister)

	require.NoError(t, h.m.RegisterApplication(testApp, testCreds))
	h.tr.WaitHeld(t, types.OpAppRegister)

	h.drop(errors.New("connection reset"))
	h.tr.Release(types.OpAppRegister)
	h.m.Flush()
	// 断线导致的无响应不产生失败事件
	assert.Empty(t, h.rec.Registrations())

	h.clock.Add(5 * time.Second)
	h.waitState(types.Connected)
	h.eventually(h.m.IsRegistered, "application registration after reconnect")
	h.m.Flush()

	assert.Len(t, h.tr.Requests(types.OpAppRegister), 2)
	regs := h.rec.Registrations()
	require.Len(t, regs, 1)
	assert.True(t, regs[0].Registered)

	// 重连握手不携带尚未确认的应用身份
	hellos := h.tr.Hellos()
	require.Len(t, hellos, 2)
	assert.Empty(t, hellos[1].ApplicationID)
}

func TestRegisterApplication_SwitchAppClearsUser(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.registerUser(testUserA, "news")

	require.NoError(t, h.m.RegisterApplication("com.acme.other", testCreds))
	h.eventually(func() bool { return h.m.Identity().ApplicationID == "com.acme.other" }, "second app")
	h.m.Flush()

	id := h.m.Identity()
	assert.Empty(t, id.UserID)
	assert.Empty(t, h.m.DeviceSubscriptions())
}

// ============================================================================
//                              用户注册
// ============================================================================

func TestRegisterUser_RequiresApplication(t *testing.T) {
	h := newHarness(t)
	h.connect()

	err := h.m.RegisterUser(testUserA, UserOptions{})
	assert.ErrorIs(t, err, types.ErrNotApplicationRegistered)
	assert.Equal(t, types.CodeFailRegisterUser, types.CodeOf(err))
	assert.ErrorIs(t, h.m.RegisterUser(testUserA, UserOptions{Channels: []string{" "}}), types.ErrInvalidArgument)
	assert.Empty(t, h.tr.Requests(types.OpUserRegister))
}

func TestRegisterUser_ServerChannelsAuthoritative(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Handle(types.OpUserRegister, func(req *types.Request) *types.Response {
		resp, _ := types.OKResponse(req.ID, types.ChannelsResult{Channels: []string{"alerts", "news"}})
		return resp
	})

	var got []types.Event
	require.NoError(t, h.m.RegisterUser(testUserA, UserOptions{
		Channels: []string{"news"},
		Handler:  func(ev types.Event) { got = append(got, ev) },
	}))
	h.eventually(func() bool { return h.m.UserID() == testUserA }, "user registration")
	h.m.Flush()

	assert.Equal(t, []string{"alerts", "news"}, h.m.DeviceSubscriptions())
	require.Len(t, got, 1)
	ev, ok := got[0].(types.RegistrationEvent)
	require.True(t, ok)
	assert.Equal(t, types.RegistrationUser, ev.Kind)
	assert.True(t, ev.Registered)

	var body types.UserRegisterRequest
	require.NoError(t, h.tr.Requests(types.OpUserRegister)[0].Decode(&body))
	assert.Equal(t, testApp, body.ApplicationID)
	assert.Equal(t, []string{"news"}, body.Channels)
}

func TestRegisterUser_Rejected(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Handle(types.OpUserRegister, rejectWith(types.CodeNone))

	require.NoError(t, h.m.RegisterUser(testUserA, UserOptions{}))
	h.eventually(func() bool { return len(h.rec.Registrations()) == 2 }, "user event")
	h.m.Flush()

	ev := h.rec.Registrations()[1]
	assert.False(t, ev.Registered)
	assert.Equal(t, types.CodeFailRegisterUser, types.CodeOf(ev.Err))
	assert.Empty(t, h.m.UserID())
}

func TestRegisterUser_QueuedBehindApplication(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Hold(types.OpUserRegister)

	require.NoError(t, h.m.RegisterUser(testUserA, UserOptions{Channels: []string{"news"}}))
	h.tr.WaitHeld(t, types.OpUserRegister)

	// 断线后用户注册在重连时重新发出
	h.drop(errors.New("reset"))
	h.tr.Release(types.OpUserRegister)
	h.clock.Add(5 * time.Second)
	h.waitState(types.Connected)
	h.eventually(func() bool { return h.m.UserID() == testUserA }, "user after reconnect")
	h.m.Flush()

	assert.Len(t, h.tr.Requests(types.OpUserRegister), 2)
	hellos := h.tr.Hellos()
	assert.Equal(t, testApp, hellos[len(hellos)-1].ApplicationID)
}

// ============================================================================
//                              完整流程
// ============================================================================

// 注册应用与用户、请求并校验验证码、以新用户重新注册
func TestScenario_RegisterVerifyRegisterAgain(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()

	regs := h.rec.Registrations()
	require.Len(t, regs, 1)
	assert.True(t, regs[0].Registered)

	h.registerUser(testUserA, "news")
	assert.Equal(t, []string{"news"}, h.m.DeviceSubscriptions())

	require.NoError(t, h.m.RequestVerificationCode(testUserA, types.MediaDefault, nil))
	h.eventually(func() bool { return len(h.rec.Codes()) == 1 }, "verification code event")
	h.m.Flush()
	code := h.rec.Codes()[0]
	assert.True(t, code.Sent)
	assert.NoError(t, code.Err)
	s, ok := h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationSent, s.Outcome)
	assert.Equal(t, h.clock.Now(), s.CodeSentAt)

	h.tr.Handle(types.OpVerifyCode, func(req *types.Request) *types.Response {
		resp, _ := types.OKResponse(req.ID, types.VerifyCodeResult{Verified: false})
		return resp
	})
	require.NoError(t, h.m.VerifyUserCode(testUserA, "000000", nil))
	h.eventually(func() bool { return len(h.rec.Verifies()) == 1 }, "verify event")
	h.m.Flush()

	v := h.rec.Verifies()[0]
	assert.False(t, v.Verified)
	assert.Equal(t, types.CodeFailVerifyUserCode, types.CodeOf(v.Err))
	s, ok = h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationFailed, s.Outcome)
	assert.ErrorIs(t, h.m.VerifyUserCode(testUserA, "000000", nil), types.ErrNoActiveSession)

	require.NoError(t, h.m.RegisterAgain(testUserB, UserOptions{}))
	assert.Empty(t, h.m.DeviceSubscriptions())
	_, ok = h.m.VerificationSession(testUserA)
	assert.False(t, ok)

	h.eventually(func() bool { return h.m.UserID() == testUserB }, "second user")
	h.m.Flush()
	assert.Empty(t, h.m.DeviceSubscriptions())
	assert.Equal(t, testApp, h.m.Identity().ApplicationID)
}

func TestResetIdentity(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.registerUser(testUserA, "news")

	require.NoError(t, h.m.ResetIdentity())
	assert.False(t, h.m.IsRegistered())
	assert.Empty(t, h.m.UserID())
	assert.Empty(t, h.m.DeviceSubscriptions())
	assert.Equal(t, 0, h.m.PendingRequests())

	loaded, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.ApplicationID)
}
