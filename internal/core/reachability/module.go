package reachability

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-pushclient/config"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// Params 可达性模块依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
	Clock  clock.Clock    `optional:"true"`

	// Override 调用方提供的来源（平台封装或测试）
	Override pkgif.ReachabilitySource `name:"reachability_source" optional:"true"`
}

// Result 可达性模块输出
type Result struct {
	fx.Out

	Source         pkgif.ReachabilitySource
	Monitor        *Monitor
	MonitorService pkgif.ReachabilityMonitor
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("reachability",
		fx.Provide(ProvideMonitor),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideMonitor 按配置选择来源并创建监控器
func ProvideMonitor(p Params) Result {
	cfg := config.DefaultReachabilityConfig()
	if p.Config != nil {
		cfg = p.Config.Reachability
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	source := p.Override
	if source == nil {
		source = NewSource(cfg, clk)
	}

	m := NewMonitor(source, clk, cfg.SlowSubscriberTimeout.Duration())
	return Result{
		Source:         source,
		Monitor:        m,
		MonitorService: m,
	}
}

// NewSource 按配置创建来源
func NewSource(cfg config.ReachabilityConfig, clk clock.Clock) pkgif.ReachabilitySource {
	switch cfg.Source {
	case config.ReachabilitySourceManual:
		return NewManualSource(types.Unreachable)
	default:
		interval := cfg.PollInterval.Duration()
		if interval <= 0 {
			interval = 5 * time.Second
		}
		return NewPollingSource(interval, WithClock(clk))
	}
}

type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Monitor *Monitor
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// 轮询需比启动超时上下文活得更久
			return input.Monitor.Start(context.Background())
		},
		OnStop: func(_ context.Context) error {
			return input.Monitor.Stop()
		},
	})
}
