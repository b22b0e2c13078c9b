package pushclient

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/pkg/lib/log"

	// Core Layer
	"github.com/dep2p/go-pushclient/internal/core/eventbus"
	"github.com/dep2p/go-pushclient/internal/core/identity"
	"github.com/dep2p/go-pushclient/internal/core/lifecycle"
	"github.com/dep2p/go-pushclient/internal/core/metrics"
	"github.com/dep2p/go-pushclient/internal/core/reachability"
	"github.com/dep2p/go-pushclient/internal/core/storage"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/core/transport"

	// Session Layer
	"github.com/dep2p/go-pushclient/internal/session"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

var fxLogger = log.Logger("pushclient/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与替换组件
//  2. Core Layer: Lifecycle → EventBus → Metrics → Storage → Identity → Reachability → Transport
//  3. Session Layer: Manager
//  4. 用户扩展与 Client 组件注入
//
// lifecycle 必须最先加载，使其 OnStop 在所有模块之后执行。
func buildFxApp(cfg *config.Config, o *options, c *Client) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置与替换组件
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),
	}
	modules = append(modules, overrideOptions(o)...)

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		lifecycle.Module(),    // 生命周期协调器
		eventbus.Module(),     // 广播总线
		metrics.Module,        // Prometheus 指标
		storage.Module(),      // BadgerDB 存储引擎
		identity.Module(),     // 身份持久化（依赖 storage）
		reachability.Module(), // 网络可达性
		transport.Module(),    // 服务器传输
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 会话层
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, session.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展与组件注入
	// ════════════════════════════════════════════════════════════════════════
	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}
	modules = append(modules,
		fx.Invoke(injectClientComponents(c)),
		fx.Invoke(registerRunningHook),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(fxEventLogger(cfg.Log.FxEvents)))

	return fx.New(modules...)
}

// overrideOptions 将替换组件以命名依赖注入
func overrideOptions(o *options) []fx.Option {
	var opts []fx.Option
	if o.transport != nil {
		t := o.transport
		opts = append(opts, fx.Provide(fx.Annotate(
			func() pkgif.Transport { return t },
			fx.ResultTags(`name:"transport_override"`),
		)))
	}
	if o.reachability != nil {
		src := o.reachability
		opts = append(opts, fx.Provide(fx.Annotate(
			func() pkgif.ReachabilitySource { return src },
			fx.ResultTags(`name:"reachability_source"`),
		)))
	}
	if o.bus != nil {
		bus := o.bus
		opts = append(opts, fx.Provide(fx.Annotate(
			func() pkgif.BroadcastBus { return bus },
			fx.ResultTags(`name:"broadcast_override"`),
		)))
	}
	if o.clock != nil {
		clk := o.clock
		opts = append(opts, fx.Provide(func() clock.Clock { return clk }))
	}
	if o.rand != nil {
		opts = append(opts, fx.Supply(o.rand))
	}
	return opts
}

// fxEventLogger 默认禁用 Fx 日志输出，避免干扰用户日志
func fxEventLogger(verbose bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if verbose {
			if l, err := zap.NewDevelopment(); err == nil {
				return &fxevent.ZapLogger{Logger: l}
			}
			fxLogger.Warn("创建 zap 日志失败，Fx 事件日志已禁用")
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// clientInjectParams Client 组件注入参数
type clientInjectParams struct {
	fx.In

	Session     *session.Manager
	Source      pkgif.ReachabilitySource
	Engine      engine.InternalEngine
	Bus         pkgif.BroadcastBus
	Coordinator *lifecycle.Coordinator
	Registry    *prometheus.Registry
}

// injectClientComponents 创建 Client 组件注入函数
func injectClientComponents(c *Client) interface{} {
	return func(p clientInjectParams) {
		c.session = p.Session
		c.source = p.Source
		c.engine = p.Engine
		c.bus = p.Bus
		c.coordinator = p.Coordinator
		c.registry = p.Registry
	}
}

// registerRunningHook 全部模块启动后推进到 running，关闭开始时推进到 stopping
//
// 最后注册，OnStart 最后执行、OnStop 最先执行。
func registerRunningHook(lc fx.Lifecycle, coord *lifecycle.Coordinator) {
	lc.Append(fx.StartStopHook(
		func() error { return coord.AdvanceTo(lifecycle.PhaseRunning) },
		func() error { return coord.AdvanceTo(lifecycle.PhaseStopping) },
	))
}
