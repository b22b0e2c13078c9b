package pushclient

import (
	"errors"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 客户端生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyStarted 客户端已启动
	ErrAlreadyStarted = errors.New("pushclient: already started")

	// ErrAlreadyInitialized 进程级默认实例已存在
	ErrAlreadyInitialized = errors.New("pushclient: default client already initialized")

	// ErrNotManualReachability 可达性来源不支持手动更新
	ErrNotManualReachability = errors.New("pushclient: reachability source is not manual")

	// ErrClosed 客户端已关闭
	ErrClosed = types.ErrClosed

	// ────────────────────────────────────────────────────────────────────────
	// 会话错误（可用 errors.Is 比较）
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = types.ErrInvalidArgument

	// ErrNotApplicationRegistered 尚未完成应用注册
	ErrNotApplicationRegistered = types.ErrNotApplicationRegistered

	// ErrMessageNotFound 消息 ID 未知
	ErrMessageNotFound = types.ErrMessageNotFound

	// ErrNoActiveSession 没有可校验的验证会话
	ErrNoActiveSession = types.ErrNoActiveSession

	// ErrNoConnection 无网络或无连接
	ErrNoConnection = types.ErrNoConnection

	// ErrNotConnected 当前未连接
	ErrNotConnected = types.ErrNotConnected

	// ErrConnectionFailed 连接失败或中断
	ErrConnectionFailed = types.ErrConnectionFailed

	// ErrAuthRejected 服务器拒绝身份
	ErrAuthRejected = types.ErrAuthRejected

	// ErrRejected 服务器拒绝请求
	ErrRejected = types.ErrRejected
)

// CodeOf 返回错误码，非 pushclient 错误返回 CodeNone
func CodeOf(err error) Code {
	return types.CodeOf(err)
}

// IsAuthError 检查是否为认证/身份错误
func IsAuthError(err error) bool {
	return types.IsAuthError(err)
}
