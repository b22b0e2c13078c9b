package transport

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/transport/websocket"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

var logger = log.Logger("core/transport")

// ConfigFromUnified 从统一配置创建 WebSocket 传输配置
func ConfigFromUnified(cfg *config.Config) websocket.Config {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := cfg.Server
	wc := websocket.DefaultConfig(s.EffectiveURL())
	wc.HandshakeTimeout = s.HandshakeTimeout.Duration()
	wc.RequestTimeout = s.RequestTimeout.Duration()
	wc.PingInterval = s.PingInterval.Duration()
	return wc
}

// ============================================================================
//                              模块输入依赖
// ============================================================================

// Params 传输模块依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
	Clock  clock.Clock    `optional:"true"`

	// Override 调用方提供的传输
	Override pkgif.Transport `name:"transport_override" optional:"true"`
}

// Result 传输模块输出
type Result struct {
	fx.Out

	Transport pkgif.Transport
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransport 提供传输，存在覆盖时直接使用
func ProvideTransport(p Params) Result {
	if p.Override != nil {
		logger.Debug("使用调用方提供的传输")
		return Result{Transport: p.Override}
	}

	cfg := ConfigFromUnified(p.Config)
	var opts []websocket.Option
	if p.Clock != nil {
		opts = append(opts, websocket.WithClock(p.Clock))
	}
	logger.Debug("创建 WebSocket 传输", "url", cfg.URL)
	return Result{Transport: websocket.New(cfg, opts...)}
}

// registerLifecycle 停止时关闭连接
func registerLifecycle(lc fx.Lifecycle, t pkgif.Transport) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
