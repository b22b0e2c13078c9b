// Package interfaces 定义 pushclient 公共接口
//
// 本文件定义网络可达性来源接口。
package interfaces

import (
	"context"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// ReachabilitySource 平台网络可达性来源
//
// 是网络可用性的唯一事实来源。
type ReachabilitySource interface {
	// Current 返回当前可达性
	Current() types.ReachabilityStatus

	// Subscribe 订阅变化，返回的 cancel 取消订阅并关闭通道
	Subscribe() (<-chan types.ReachabilityStatus, func())

	// Start 启动来源（轮询或平台回调）
	Start(ctx context.Context) error

	// Stop 停止来源
	Stop() error
}

// ReachabilityMonitor 缓存最新可达性并只发出变化
type ReachabilityMonitor interface {
	// Status 同步返回最后已知状态
	Status() types.ReachabilityStatus

	// Subscribe 订阅状态变化
	Subscribe() (<-chan types.ReachabilityStatus, func())
}
