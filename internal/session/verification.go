package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// errWrongCode 服务器判定验证码错误
var errWrongCode = errors.New("verification code rejected")

// RequestVerificationCode 请求向 userID 下发验证码
//
// 要求应用已注册且处于 Connected，未连接时返回 ErrNoConnection 且不创建会话。
// 新请求取代该用户已有的会话。media 为空时使用配置的默认媒介。
func (m *Manager) RequestVerificationCode(userID, media string, cb Handler) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.ErrInvalidArgument.WithOp("request_verification_code", fmt.Errorf("empty user id"))
	}
	if media == "" {
		media = m.cfg.Verification.DefaultMedia
	}
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("request_verification_code", nil)
		}
		if !m.reach.Reachable || m.machine.State() != types.Connected {
			return types.ErrNoConnection.WithOp("request_verification_code", nil)
		}
		req, err := types.NewRequest(types.OpVerifyRequest, types.VerifyRequest{UserID: userID, Media: media})
		if err != nil {
			return err
		}
		s := m.verify.Begin(userID, media)
		m.send(req, func(resp *types.Response, err error) {
			m.onVerifyRequestResponse(s, cb, resp, err)
		})
		return nil
	})
}

func (m *Manager) onVerifyRequestResponse(s types.VerificationSession, cb Handler, resp *types.Response, err error) {
	failure := responseError(types.OpVerifyRequest, types.CodeFailVerification, resp, err)
	ev := types.VerificationCodeEvent{UserID: s.UserID, Media: s.RequestedMedia}

	if failure != nil {
		if _, ok := m.verify.MarkFailed(s.UserID, s.Generation); !ok {
			m.dropLate("verify_request")
			return
		}
		logger.Warn("验证码请求失败", "user", log.TruncateID(s.UserID, 6), "err", failure)
		ev.Err = failure
		m.emit(ev, cb)
		return
	}

	if _, ok := m.verify.MarkSent(s.UserID, s.Generation); !ok {
		m.dropLate("verify_request")
		return
	}
	logger.Info("验证码已发送", "user", log.TruncateID(s.UserID, 6))
	ev.Sent = true
	m.emit(ev, cb)
}

// VerifyUserCode 校验验证码
//
// 要求该用户存在 Sent 会话，否则返回 ErrNoActiveSession。
// 验证码错误时会话进入 Failed，事件携带 CodeFailVerifyUserCode。
func (m *Manager) VerifyUserCode(userID, code string, cb Handler) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.ErrInvalidArgument.WithOp("verify_user_code", fmt.Errorf("empty user id"))
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return types.ErrInvalidArgument.WithOp("verify_user_code", fmt.Errorf("empty code"))
	}
	return m.do(func() error {
		s, err := m.verify.RequireSent(userID)
		if err != nil {
			return err
		}
		if !m.reach.Reachable || m.machine.State() != types.Connected {
			return types.ErrNoConnection.WithOp("verify_user_code", nil)
		}
		req, err := types.NewRequest(types.OpVerifyCode, types.VerifyCodeRequest{UserID: userID, Code: code})
		if err != nil {
			return err
		}
		m.send(req, func(resp *types.Response, err error) {
			m.onVerifyCodeResponse(s, cb, resp, err)
		})
		return nil
	})
}

func (m *Manager) onVerifyCodeResponse(s types.VerificationSession, cb Handler, resp *types.Response, err error) {
	ev := types.VerifyUserCodeEvent{UserID: s.UserID}

	if err != nil {
		// 未得到响应，会话保持 Sent，可再次提交
		cur, ok := m.verify.Get(s.UserID)
		if !ok || cur.Generation != s.Generation || cur.Outcome != types.VerificationSent {
			m.dropLate("verify_code")
			return
		}
		ev.Err = types.ErrConnectionFailed.WithOp(string(types.OpVerifyCode), err).WithCode(types.CodeFailVerifyUserCode)
		m.emit(ev, cb)
		return
	}

	verified := false
	failure := resp.Err(types.OpVerifyCode, types.CodeFailVerifyUserCode)
	if failure == nil {
		var result types.VerifyCodeResult
		switch derr := resp.Decode(&result); {
		case derr != nil:
			failure = types.ErrRejected.WithOp(string(types.OpVerifyCode), derr).WithCode(types.CodeFailVerifyUserCode)
		case !result.Verified:
			failure = types.ErrRejected.WithOp(string(types.OpVerifyCode), errWrongCode).WithCode(types.CodeFailVerifyUserCode)
		default:
			verified = true
		}
	}

	if _, ok := m.verify.Complete(s.UserID, s.Generation, verified); !ok {
		m.dropLate("verify_code")
		return
	}
	if verified {
		logger.Info("验证码校验通过", "user", log.TruncateID(s.UserID, 6))
	} else {
		logger.Warn("验证码校验失败", "user", log.TruncateID(s.UserID, 6), "err", failure)
	}
	ev.Verified = verified
	ev.Err = failure
	m.emit(ev, cb)
}
