// Package interfaces 定义 pushclient 公共接口
//
// 本文件定义 Transport 接口，抽象与推送服务器之间的可靠消息通道。
package interfaces

import (
	"context"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// ResponseHandler 请求完成回调
//
// resp 与 err 恰有一个非 nil。err 表示请求未得到响应（连接断开、超时）。
type ResponseHandler func(resp *types.Response, err error)

// Transport 定义传输层接口
//
// 核心不关心线上编码，只依赖请求/响应与推送语义。
// 回调可能在任意 goroutine 上调用，调用方需自行串行化。
type Transport interface {
	// Connect 建立连接并完成握手
	//
	// 阻塞直到握手成功、失败或 ctx 取消。认证拒绝返回 types.ErrAuthRejected。
	Connect(ctx context.Context, hello types.Hello) error

	// Send 异步发送请求，cb 恰好调用一次
	Send(req *types.Request, cb ResponseHandler)

	// OnPush 设置服务器推送处理函数
	OnPush(fn func(push *types.Push))

	// OnClosed 设置连接关闭处理函数
	//
	// 仅在已建立的连接意外或正常关闭时调用，err 为 nil 表示正常关闭。
	// 调用 Close 主动关闭时不触发。实现须先调用 fn，再以错误完成挂起的请求。
	OnClosed(fn func(err error))

	// Close 关闭当前连接，可重复调用，之后仍可再次 Connect
	Close() error
}
