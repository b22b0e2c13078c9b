package session

import (
	"context"
	"math/rand"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/identity"
	"github.com/dep2p/go-pushclient/internal/core/lifecycle"
	"github.com/dep2p/go-pushclient/internal/core/metrics"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// Params 会话模块依赖参数
type Params struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Transport pkgif.Transport
	Monitor   pkgif.ReachabilityMonitor
	Identity  *identity.Store

	Bus     pkgif.BroadcastBus `optional:"true"`
	Metrics metrics.Reporter   `optional:"true"`
	Clock   clock.Clock        `optional:"true"`
	Rand    *rand.Rand         `optional:"true"`

	Coordinator *lifecycle.Coordinator `optional:"true"`
}

// Result 会话模块输出
type Result struct {
	fx.Out

	Manager *Manager
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 创建会话执行器
func ProvideManager(p Params) (Result, error) {
	opts := Options{
		Config:    p.Config,
		Transport: p.Transport,
		Monitor:   p.Monitor,
		Identity:  p.Identity,
		Bus:       p.Bus,
		Metrics:   p.Metrics,
		Clock:     p.Clock,
		Rand:      p.Rand,
	}
	if p.Coordinator != nil {
		opts.Connected = p.Coordinator
	}
	m, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return Result{Manager: m}, nil
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return m.Stop(ctx)
		},
	})
}
