package session

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-pushclient/internal/protocol/registration"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// UserOptions 用户注册选项
type UserOptions struct {
	// Channels 注册时一并订阅的频道
	Channels []string

	// UserInfo 附加用户信息
	UserInfo types.Payload

	// Handler 本次注册的完成回调
	Handler Handler
}

// ============================================================================
//                              应用注册
// ============================================================================

// RegisterApplication 注册应用
//
// 本地校验失败时同步返回错误且不发起请求。通过校验后清除认证锁定，
// 在当前连接上派发，未连接时发起连接并在 Connected 后派发。
// 结果只经由注册事件送达。
func (m *Manager) RegisterApplication(appID string, creds types.Credentials) error {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return types.ErrInvalidArgument.WithOp("register_application", fmt.Errorf("empty application id"))
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	return m.do(func() error {
		m.registrar.SetApp(appID, creds)
		m.machine.ClearAuth()
		logger.Info("登记应用注册", "app", appID)
		m.dispatchRegistrations()
		return nil
	})
}

// ============================================================================
//                              用户注册
// ============================================================================

// RegisterUser 注册用户
//
// 要求应用注册已确认。调用时即丢弃其他用户的验证会话。
func (m *Manager) RegisterUser(userID string, opts UserOptions) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.ErrInvalidArgument.WithOp("register_user", fmt.Errorf("empty user id"))
	}
	channels, err := normalizeChannels(opts.Channels)
	if err != nil {
		return err
	}
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("register_user", nil)
		}
		m.verify.InvalidateExcept(userID)
		m.enqueueUser(userID, channels, opts)
		return nil
	})
}

// RegisterAgain 以新用户替换当前身份
//
// 先丢弃全部验证会话并清空频道缓存（含尚未发出的订阅变更），再注册新用户。
func (m *Manager) RegisterAgain(userID string, opts UserOptions) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.ErrInvalidArgument.WithOp("register_again", fmt.Errorf("empty user id"))
	}
	channels, err := normalizeChannels(opts.Channels)
	if err != nil {
		return err
	}
	return m.do(func() error {
		if !m.identity.Snapshot().IsApplicationRegistered() {
			return types.ErrNotApplicationRegistered.WithOp("register_again", nil)
		}
		m.verify.InvalidateAll()
		m.outbox.RemoveOps(types.OpChannelSubscribe, types.OpChannelUnsub)
		if _, err := m.identity.Update(func(id *types.Identity) error {
			id.Channels = nil
			return nil
		}); err != nil {
			return storageError("register_again", err)
		}
		m.enqueueUser(userID, channels, opts)
		return nil
	})
}

func (m *Manager) enqueueUser(userID string, channels []string, opts UserOptions) {
	m.registrar.SetUser(registration.UserRequest{
		UserID:   userID,
		Channels: channels,
		UserInfo: opts.UserInfo,
		Callback: registration.Callback(opts.Handler),
	})
	logger.Info("登记用户注册", "user", log.TruncateID(userID, 6), "channels", len(channels))
	m.dispatchRegistrations()
}

func normalizeChannels(in []string) ([]string, error) {
	var id types.Identity
	for _, ch := range in {
		if strings.TrimSpace(ch) == "" {
			return nil, types.ErrInvalidArgument.WithOp("channels", fmt.Errorf("empty channel name"))
		}
	}
	id.AddChannels(in...)
	return id.Channels, nil
}

// ============================================================================
//                              派发
// ============================================================================

// dispatchRegistrations 已连接时派发待发送的注册，否则发起连接
//
// 应用注册优先，用户注册等待应用注册完成后再发。
func (m *Manager) dispatchRegistrations() {
	if m.machine.State() != types.Connected {
		if m.registrar.AppOutstanding() || m.registrar.UserOutstanding() {
			m.connect(types.ReasonRegistration)
		}
		return
	}
	if m.registrar.AppOutstanding() {
		if app, ok := m.registrar.TakeApp(); ok {
			m.sendApp(app)
		}
		return
	}
	if user, ok := m.registrar.TakeUser(); ok {
		m.sendUser(user)
	}
}

func (m *Manager) sendApp(app registration.AppRequest) {
	req, err := types.NewRequest(types.OpAppRegister, types.AppRegisterRequest{
		ApplicationID: app.ApplicationID,
		Username:      app.Credentials.Username,
		Password:      app.Credentials.Password,
		DeviceToken:   m.identity.Snapshot().DeviceToken,
	})
	if err != nil {
		m.registrar.CompleteApp(app.Generation)
		m.emit(types.RegistrationEvent{
			Kind:          types.RegistrationApplication,
			ApplicationID: app.ApplicationID,
			Err:           err,
		}, nil)
		return
	}
	epoch := m.epoch
	m.send(req, func(resp *types.Response, err error) {
		m.onAppResponse(app, epoch, resp, err)
	})
}

func (m *Manager) onAppResponse(app registration.AppRequest, epoch uint64, resp *types.Response, err error) {
	if err != nil && m.requeueOnLoss(app.Generation, epoch) {
		return
	}
	if _, ok := m.registrar.CompleteApp(app.Generation); !ok {
		m.dropLate("app_register")
		return
	}

	failure := responseError(types.OpAppRegister, types.CodeFailRegisterApplication, resp, err)
	ev := types.RegistrationEvent{
		Kind:          types.RegistrationApplication,
		ApplicationID: app.ApplicationID,
	}
	if failure == nil {
		if _, serr := m.identity.Update(func(id *types.Identity) error {
			if id.ApplicationID != app.ApplicationID {
				// 换应用后旧的用户与频道不再有效
				id.UserID = ""
				id.Channels = nil
			}
			id.ApplicationID = app.ApplicationID
			return nil
		}); serr != nil {
			failure = storageError("register_application", serr).WithCode(types.CodeFailRegisterApplication)
		}
	}

	if failure != nil {
		logger.Warn("应用注册失败", "app", app.ApplicationID, "err", failure)
		m.setFailure(failure)
		ev.Err = failure
		m.emit(ev, nil)
		if types.IsAuthError(failure) {
			m.rejectIdentity(failure)
		}
		return
	}

	logger.Info("应用注册成功", "app", app.ApplicationID)
	ev.Registered = true
	m.emit(ev, nil)

	if user, ok := m.registrar.TakeUser(); ok {
		m.sendUser(user)
	}
}

func (m *Manager) sendUser(user registration.UserRequest) {
	id := m.identity.Snapshot()
	req, err := types.NewRequest(types.OpUserRegister, types.UserRegisterRequest{
		ApplicationID: id.ApplicationID,
		UserID:        user.UserID,
		Channels:      user.Channels,
		UserInfo:      user.UserInfo,
	})
	if err != nil {
		m.registrar.CompleteUser(user.Generation)
		m.emit(types.RegistrationEvent{
			Kind:          types.RegistrationUser,
			ApplicationID: id.ApplicationID,
			UserID:        user.UserID,
			Err:           err,
		}, Handler(user.Callback))
		return
	}
	epoch := m.epoch
	m.send(req, func(resp *types.Response, err error) {
		m.onUserResponse(user, epoch, resp, err)
	})
}

func (m *Manager) onUserResponse(user registration.UserRequest, epoch uint64, resp *types.Response, err error) {
	if err != nil && m.requeueOnLoss(user.Generation, epoch) {
		return
	}
	if _, ok := m.registrar.CompleteUser(user.Generation); !ok {
		m.dropLate("user_register")
		return
	}

	failure := responseError(types.OpUserRegister, types.CodeFailRegisterUser, resp, err)
	var updated types.Identity
	if failure == nil {
		var result types.ChannelsResult
		if derr := resp.Decode(&result); derr != nil {
			logger.Warn("无法解析用户注册响应中的频道列表", "err", derr)
			result.Channels = nil
		}
		var serr error
		updated, serr = m.identity.Update(func(id *types.Identity) error {
			id.UserID = user.UserID
			if result.Channels != nil {
				// 服务器给出的列表是权威的
				id.Channels = nil
				id.AddChannels(result.Channels...)
			} else {
				id.AddChannels(user.Channels...)
			}
			return nil
		})
		if serr != nil {
			failure = storageError("register_user", serr).WithCode(types.CodeFailRegisterUser)
		}
	}

	ev := types.RegistrationEvent{
		Kind:          types.RegistrationUser,
		ApplicationID: m.identity.Snapshot().ApplicationID,
		UserID:        user.UserID,
	}
	if failure != nil {
		logger.Warn("用户注册失败", "user", log.TruncateID(user.UserID, 6), "err", failure)
		m.setFailure(failure)
		ev.Err = failure
	} else {
		logger.Info("用户注册成功",
			"user", log.TruncateID(user.UserID, 6),
			"channels", len(updated.Channels))
		ev.Registered = true
	}
	m.emit(ev, Handler(user.Callback))
	if types.IsAuthError(failure) {
		m.rejectIdentity(failure)
	}
}

// requeueOnLoss 请求因断线未得到响应时退回待发送，返回是否已处理
//
// 连接仍然存在（单个请求超时）时返回 false，按失败处理。
func (m *Manager) requeueOnLoss(gen, epoch uint64) bool {
	if epoch == m.epoch && m.machine.State() == types.Connected {
		return false
	}
	if epoch == m.epoch {
		m.registrar.Requeue(gen)
	}
	logger.Debug("注册请求因断线退回待发送", "generation", gen)
	return true
}

// ============================================================================
//                              身份重置
// ============================================================================

// ResetIdentity 清除持久化身份与全部待发送请求
func (m *Manager) ResetIdentity() error {
	return m.do(func() error {
		m.registrar.Reset()
		m.outbox.Clear()
		m.verify.InvalidateAll()
		if err := m.identity.Reset(); err != nil {
			return storageError("reset_identity", err)
		}
		m.metrics.OutboxDepth(0)
		logger.Info("身份已重置")
		return nil
	})
}

// ============================================================================
//                              辅助
// ============================================================================

// send 发送请求，响应投递回执行器
func (m *Manager) send(req *types.Request, handle func(resp *types.Response, err error)) {
	m.transport.Send(req, func(resp *types.Response, err error) {
		m.post(func() { handle(resp, err) })
	})
}

// responseError 统一请求失败：未得到响应归为连接失败，拒绝响应按响应码
func responseError(op types.Op, fallback types.Code, resp *types.Response, err error) error {
	if err != nil {
		return types.ErrConnectionFailed.WithOp(string(op), err).WithCode(fallback)
	}
	return resp.Err(op, fallback)
}

func storageError(op string, err error) *types.Error {
	return types.NewError(types.CodeNone, types.KindLocalState, op, err)
}

func (m *Manager) dropLate(kind string) {
	m.metrics.LateResponseDropped(kind)
	logger.Debug("丢弃迟到响应", "kind", kind)
}
