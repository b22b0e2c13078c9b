package registration

import (
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("protocol/registration")

// Callback 单次调用的完成回调
type Callback func(ev types.Event)

// AppRequest 应用注册请求
type AppRequest struct {
	ApplicationID string
	Credentials   types.Credentials
	Generation    uint64
}

// UserRequest 用户注册请求
type UserRequest struct {
	UserID     string
	Channels   []string
	UserInfo   types.Payload
	Callback   Callback
	Generation uint64
}

type slotState int

const (
	slotEmpty slotState = iota
	slotPending
	slotInFlight
)

// Registrar 注册请求登记表
type Registrar struct {
	gen uint64

	app      AppRequest
	appState slotState

	user      UserRequest
	userState slotState
}

// NewRegistrar 创建登记表
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// ============================================================================
//                              应用注册
// ============================================================================

// SetApp 登记应用注册，取代任何待发送或已发出的应用注册
func (r *Registrar) SetApp(appID string, creds types.Credentials) AppRequest {
	r.gen++
	if r.appState == slotInFlight {
		logger.Debug("应用注册被新请求取代", "generation", r.app.Generation)
	}
	r.app = AppRequest{ApplicationID: appID, Credentials: creds, Generation: r.gen}
	r.appState = slotPending
	return r.app
}

// TakeApp 取出待发送的应用注册并标记为已发出
func (r *Registrar) TakeApp() (AppRequest, bool) {
	if r.appState != slotPending {
		return AppRequest{}, false
	}
	r.appState = slotInFlight
	return r.app, true
}

// CompleteApp 应用注册收到响应
//
// 代号不匹配（已被取代）时返回 false。
func (r *Registrar) CompleteApp(gen uint64) (AppRequest, bool) {
	if r.appState != slotInFlight || r.app.Generation != gen {
		return AppRequest{}, false
	}
	req := r.app
	r.app = AppRequest{}
	r.appState = slotEmpty
	return req, true
}

// AppOutstanding 是否有未完成的应用注册
func (r *Registrar) AppOutstanding() bool {
	return r.appState != slotEmpty
}

// ============================================================================
//                              用户注册
// ============================================================================

// SetUser 登记用户注册，取代任何未完成的用户注册
func (r *Registrar) SetUser(req UserRequest) UserRequest {
	r.gen++
	if r.userState != slotEmpty {
		logger.Debug("用户注册被新请求取代",
			"old_user", log.TruncateID(r.user.UserID, 6),
			"new_user", log.TruncateID(req.UserID, 6))
	}
	req.Channels = append([]string(nil), req.Channels...)
	req.UserInfo = req.UserInfo.Clone()
	req.Generation = r.gen
	r.user = req
	r.userState = slotPending
	return req
}

// TakeUser 取出待发送的用户注册并标记为已发出
func (r *Registrar) TakeUser() (UserRequest, bool) {
	if r.userState != slotPending {
		return UserRequest{}, false
	}
	r.userState = slotInFlight
	return r.user, true
}

// CompleteUser 用户注册收到响应
func (r *Registrar) CompleteUser(gen uint64) (UserRequest, bool) {
	if r.userState != slotInFlight || r.user.Generation != gen {
		return UserRequest{}, false
	}
	req := r.user
	r.user = UserRequest{}
	r.userState = slotEmpty
	return req, true
}

// UserOutstanding 是否有未完成的用户注册
func (r *Registrar) UserOutstanding() bool {
	return r.userState != slotEmpty
}

// ============================================================================
//                              连接中断
// ============================================================================

// Requeue 连接中断，已发出的请求退回待发送
//
// 只有 gen 与当前请求一致时才退回，返回是否退回。
func (r *Registrar) Requeue(gen uint64) bool {
	switch {
	case r.appState == slotInFlight && r.app.Generation == gen:
		r.appState = slotPending
		return true
	case r.userState == slotInFlight && r.user.Generation == gen:
		r.userState = slotPending
		return true
	}
	return false
}

// RequeueAll 所有已发出的请求退回待发送
func (r *Registrar) RequeueAll() {
	if r.appState == slotInFlight {
		r.appState = slotPending
	}
	if r.userState == slotInFlight {
		r.userState = slotPending
	}
}

// Reset 丢弃全部登记
func (r *Registrar) Reset() {
	r.app, r.appState = AppRequest{}, slotEmpty
	r.user, r.userState = UserRequest{}, slotEmpty
}
