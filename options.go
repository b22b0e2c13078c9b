package pushclient

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/reachability"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置，nil 时使用默认值
	config *config.Config

	// 配置文件与环境变量
	configFile string
	applyEnv   bool

	// 服务器
	server struct {
		url            string
		developmentURL string
		development    *bool
		useTLS         *bool
	}

	// 存储
	storage struct {
		dataDir  string
		inMemory *bool
	}

	// 连接
	autoConnect *bool

	// 替换组件
	transport    Transport
	reachability ReachabilitySource
	bus          BroadcastBus
	clock        clock.Clock
	rand         *rand.Rand

	// 用户扩展
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// toInternalConfig 转换为内部配置
//
// 优先级：显式选项 > 环境变量 > 配置文件 > WithConfig > 默认值。
func (o *options) toInternalConfig(ctx context.Context) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case o.configFile != "":
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case o.config != nil:
		cfg = o.config.Clone()
	default:
		cfg = config.NewConfig()
	}

	if o.applyEnv {
		if err := config.ApplyEnv(ctx, cfg); err != nil {
			return nil, fmt.Errorf("apply env: %w", err)
		}
	}

	if o.server.url != "" {
		cfg.Server.URL = o.server.url
	}
	if o.server.developmentURL != "" {
		cfg.Server.DevelopmentURL = o.server.developmentURL
	}
	if o.server.development != nil {
		cfg.Server.Development = *o.server.development
	}
	if o.server.useTLS != nil {
		cfg.Server.UseTLS = *o.server.useTLS
	}
	if o.storage.dataDir != "" {
		cfg.Storage.DataDir = o.storage.dataDir
	}
	if o.storage.inMemory != nil {
		cfg.Storage.InMemory = *o.storage.inMemory
	}
	if o.autoConnect != nil {
		cfg.Connection.AutoConnect = *o.autoConnect
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置作为基础，之后的选项可覆盖其中字段
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		o.config = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务器
// ════════════════════════════════════════════════════════════════════════════

// WithServerURL 设置生产环境服务器地址
func WithServerURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return fmt.Errorf("server url cannot be empty")
		}
		o.server.url = url
		return nil
	}
}

// WithDevelopmentURL 设置开发环境服务器地址
func WithDevelopmentURL(url string) Option {
	return func(o *options) error {
		if url == "" {
			return fmt.Errorf("development url cannot be empty")
		}
		o.server.developmentURL = url
		return nil
	}
}

// WithDevelopment 切换到开发环境
//
// 开发环境使用 DevelopmentURL，且不使用 TLS。
func WithDevelopment(enable bool) Option {
	return func(o *options) error {
		o.server.development = &enable
		return nil
	}
}

// WithTLS 生产环境是否使用 TLS
func WithTLS(enable bool) Option {
	return func(o *options) error {
		o.server.useTLS = &enable
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              存储
// ════════════════════════════════════════════════════════════════════════════

// WithDataDir 设置身份持久化目录
func WithDataDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return fmt.Errorf("data dir cannot be empty")
		}
		o.storage.dataDir = dir
		return nil
	}
}

// WithInMemoryStorage 使用内存存储，身份不跨进程保留
func WithInMemoryStorage() Option {
	return func(o *options) error {
		enable := true
		o.storage.inMemory = &enable
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接
// ════════════════════════════════════════════════════════════════════════════

// WithAutoConnect 网络可达时是否自动连接
//
// 关闭后需调用 Reconnect 发起连接。
func WithAutoConnect(enable bool) Option {
	return func(o *options) error {
		o.autoConnect = &enable
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              替换组件
// ════════════════════════════════════════════════════════════════════════════

// WithTransport 使用自定义传输替代内置 WebSocket 传输
func WithTransport(t Transport) Option {
	return func(o *options) error {
		if t == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		o.transport = t
		return nil
	}
}

// WithReachabilitySource 使用自定义可达性来源
func WithReachabilitySource(src ReachabilitySource) Option {
	return func(o *options) error {
		if src == nil {
			return fmt.Errorf("reachability source cannot be nil")
		}
		o.reachability = src
		return nil
	}
}

// WithManualReachability 使用手动可达性来源，通过 UpdateReachability 推送变化
func WithManualReachability(initial ReachabilityStatus) Option {
	return func(o *options) error {
		o.reachability = reachability.NewManualSource(initial)
		return nil
	}
}

// WithBroadcastBus 使用独立广播总线替代进程级默认总线
func WithBroadcastBus(bus BroadcastBus) Option {
	return func(o *options) error {
		if bus == nil {
			return fmt.Errorf("broadcast bus cannot be nil")
		}
		o.bus = bus
		return nil
	}
}

// WithClock 替换退避、超时与时间戳使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.clock = c
		return nil
	}
}

// WithRand 替换退避抖动使用的随机源
func WithRand(r *rand.Rand) Option {
	return func(o *options) error {
		if r == nil {
			return fmt.Errorf("rand cannot be nil")
		}
		o.rand = r
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
