package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/pkg/types"
)

func verifiedResult(verified bool) func(*types.Request) *types.Response {
	return func(req *types.Request) *types.Response {
		resp, _ := types.OKResponse(req.ID, types.VerifyCodeResult{Verified: verified})
		return resp
	}
}

// requestCode 请求验证码并等待已发送
func (h *harness) requestCode(userID string) {
	h.t.Helper()
	n := len(h.rec.Codes())
	require.NoError(h.t, h.m.RequestVerificationCode(userID, types.MediaSMS, nil))
	h.eventually(func() bool { return len(h.rec.Codes()) == n+1 }, "verification code event")
	h.m.Flush()
}

func TestVerification_Success(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.requestCode(testUserA)

	var body types.VerifyRequest
	require.NoError(t, h.tr.Requests(types.OpVerifyRequest)[0].Decode(&body))
	assert.Equal(t, testUserA, body.UserID)
	assert.Equal(t, types.MediaSMS, body.Media)

	h.tr.Handle(types.OpVerifyCode, verifiedResult(true))
	var got []types.Event
	require.NoError(t, h.m.VerifyUserCode(testUserA, " 123456 ", func(ev types.Event) { got = append(got, ev) }))
	h.m.Flush()

	require.Len(t, got, 1)
	ev, ok := got[0].(types.VerifyUserCodeEvent)
	require.True(t, ok)
	assert.True(t, ev.Verified)
	assert.NoError(t, ev.Err)

	s, ok := h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationVerified, s.Outcome)

	var code types.VerifyCodeRequest
	require.NoError(t, h.tr.Requests(types.OpVerifyCode)[0].Decode(&code))
	assert.Equal(t, "123456", code.Code)
}

func TestVerification_DefaultMedia(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Verification.DefaultMedia = types.MediaCall
	h := newHarnessWithConfig(t, cfg)
	h.connect()
	h.registerApp()

	require.NoError(t, h.m.RequestVerificationCode(testUserA, "", nil))
	h.m.Flush()
	var body types.VerifyRequest
	require.NoError(t, h.tr.Requests(types.OpVerifyRequest)[0].Decode(&body))
	assert.Equal(t, types.MediaCall, body.Media)
}

func TestVerification_RequestRejected(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Handle(types.OpVerifyRequest, rejectWith(types.CodeNone))

	h.requestCode(testUserA)
	ev := h.rec.Codes()[0]
	assert.False(t, ev.Sent)
	assert.Equal(t, types.CodeFailVerification, types.CodeOf(ev.Err))

	s, ok := h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationFailed, s.Outcome)
	assert.ErrorIs(t, h.m.VerifyUserCode(testUserA, "123456", nil), types.ErrNoActiveSession)
}

func TestVerification_RequiresConnection(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.setReachable(false)
	h.waitState(types.Disconnected)

	err := h.m.RequestVerificationCode(testUserA, "", nil)
	assert.ErrorIs(t, err, types.ErrNoConnection)
	assert.Equal(t, types.CodeNoInternetConnection, types.CodeOf(err))
	_, ok := h.m.VerificationSession(testUserA)
	assert.False(t, ok)
	assert.Empty(t, h.tr.Requests(types.OpVerifyRequest))
}

func TestVerification_RequiresApplication(t *testing.T) {
	h := newHarness(t)
	h.connect()

	assert.ErrorIs(t, h.m.RequestVerificationCode(testUserA, "", nil), types.ErrNotApplicationRegistered)
	assert.ErrorIs(t, h.m.VerifyUserCode(testUserA, "123456", nil), types.ErrNoActiveSession)
	assert.ErrorIs(t, h.m.VerifyUserCode(testUserA, "", nil), types.ErrInvalidArgument)
}

// 切换用户后，旧用户验证请求的迟到响应不产生任何事件
func TestVerification_SupersededByOtherUser(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Hold(types.OpVerifyRequest)

	require.NoError(t, h.m.RequestVerificationCode(testUserA, types.MediaSMS, nil))
	req := h.tr.WaitHeld(t, types.OpVerifyRequest)

	require.NoError(t, h.m.RegisterUser(testUserB, UserOptions{}))
	require.True(t, h.tr.RespondOK(req.ID, nil))
	h.eventually(func() bool { return h.m.UserID() == testUserB }, "user registration")
	h.m.Flush()

	assert.Empty(t, h.rec.Codes())
	assert.Empty(t, h.rec.Verifies())
	_, ok := h.m.VerificationSession(testUserA)
	assert.False(t, ok)
	assert.ErrorIs(t, h.m.VerifyUserCode(testUserA, "123456", nil), types.ErrNoActiveSession)
}

// 同一用户重复请求时只有最新会话的响应生效
func TestVerification_SupersededBySameUser(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.tr.Hold(types.OpVerifyRequest)

	require.NoError(t, h.m.RequestVerificationCode(testUserA, types.MediaSMS, nil))
	require.NoError(t, h.m.RequestVerificationCode(testUserA, types.MediaEmail, nil))
	held := h.tr.Held(types.OpVerifyRequest)
	require.Len(t, held, 2)

	require.True(t, h.tr.RespondOK(held[0].ID, nil))
	h.m.Flush()
	assert.Empty(t, h.rec.Codes())
	s, ok := h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationPending, s.Outcome)
	assert.Equal(t, types.MediaEmail, s.RequestedMedia)

	require.True(t, h.tr.RespondOK(held[1].ID, nil))
	h.m.Flush()
	codes := h.rec.Codes()
	require.Len(t, codes, 1)
	assert.True(t, codes[0].Sent)
	assert.Equal(t, types.MediaEmail, codes[0].Media)
}

func TestVerification_NoResponseKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.requestCode(testUserA)
	h.tr.Hold(types.OpVerifyCode)

	require.NoError(t, h.m.VerifyUserCode(testUserA, "123456", nil))
	h.tr.WaitHeld(t, types.OpVerifyCode)
	h.drop(errors.New("reset"))
	h.m.Flush()

	verifies := h.rec.Verifies()
	require.Len(t, verifies, 1)
	assert.False(t, verifies[0].Verified)
	assert.ErrorIs(t, verifies[0].Err, types.ErrConnectionFailed)
	assert.Equal(t, types.CodeFailVerifyUserCode, types.CodeOf(verifies[0].Err))

	s, ok := h.m.VerificationSession(testUserA)
	require.True(t, ok)
	assert.Equal(t, types.VerificationSent, s.Outcome)
}

func TestVerification_RegisterAgainInvalidatesAll(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.registerApp()
	h.requestCode(testUserA)
	h.requestCode(testUserB)

	require.NoError(t, h.m.RegisterAgain(testUserB, UserOptions{}))
	_, okA := h.m.VerificationSession(testUserA)
	_, okB := h.m.VerificationSession(testUserB)
	assert.False(t, okA)
	assert.False(t, okB)
}
