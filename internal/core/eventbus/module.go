package eventbus

import (
	"sync"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
	"go.uber.org/fx"
)

// ============================================================================
// 进程级默认总线
// ============================================================================

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default 返回进程级广播总线
//
// 连接状态与可达性类别为有状态模式。
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = NewBus(WithStateful(
			types.CategoryConnectionChanged,
			types.CategoryReachabilityChanged,
		))
	})
	return defaultBus
}

// ============================================================================
// Fx 模块
// ============================================================================

// Params Fx 模块输入
type Params struct {
	fx.In

	// Override 调用方指定的总线（测试隔离用）
	Override pkgif.BroadcastBus `name:"broadcast_override" optional:"true"`
}

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus pkgif.BroadcastBus
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideBroadcastBus),
	)
}

// ProvideBroadcastBus 提供广播总线，未指定时使用进程级默认总线
func ProvideBroadcastBus(p Params) Result {
	if p.Override != nil {
		return Result{Bus: p.Override}
	}
	return Result{Bus: Default()}
}
