package config

import (
	"fmt"
	"time"
)

// BackoffConfig 重连退避配置
//
// 第 n 次重试的延迟为 min(Initial * Multiplier^n, Max)，
// 再乘以 [1-Jitter, 1+Jitter) 区间内的随机因子。
type BackoffConfig struct {
	Initial    Duration `json:"initial" toml:"initial"`
	Max        Duration `json:"max" toml:"max"`
	Multiplier float64  `json:"multiplier" toml:"multiplier"`
	Jitter     float64  `json:"jitter" toml:"jitter"`
}

// ConnectionConfig 连接状态机配置
type ConnectionConfig struct {
	// AutoConnect 网络可达时自动发起连接
	AutoConnect bool `json:"auto_connect" toml:"auto_connect"`

	// Backoff 重连退避策略
	Backoff BackoffConfig `json:"backoff" toml:"backoff"`
}

// DefaultConnectionConfig 返回默认连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		AutoConnect: true,
		Backoff: BackoffConfig{
			Initial:    Duration(time.Second),
			Max:        Duration(2 * time.Minute),
			Multiplier: 2,
			Jitter:     0.2,
		},
	}
}

// Validate 验证连接配置
func (c *ConnectionConfig) Validate() error {
	b := c.Backoff
	if b.Initial <= 0 {
		return fmt.Errorf("connection: backoff.initial must be positive")
	}
	if b.Max < b.Initial {
		return fmt.Errorf("connection: backoff.max must be >= backoff.initial")
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("connection: backoff.multiplier must be >= 1")
	}
	if b.Jitter < 0 || b.Jitter >= 1 {
		return fmt.Errorf("connection: backoff.jitter must be in [0, 1)")
	}
	return nil
}

// ReachabilityConfig 网络可达性监控配置
type ReachabilityConfig struct {
	// Source 可达性来源: "polling"（轮询本机网卡）或 "manual"（由平台层推送）
	Source string `json:"source" toml:"source"`

	// PollInterval 轮询间隔
	PollInterval Duration `json:"poll_interval" toml:"poll_interval"`

	// SlowSubscriberTimeout 订阅者通知超时
	SlowSubscriberTimeout Duration `json:"slow_subscriber_timeout" toml:"slow_subscriber_timeout"`
}

// 可达性来源
const (
	ReachabilitySourcePolling = "polling"
	ReachabilitySourceManual  = "manual"
)

// DefaultReachabilityConfig 返回默认可达性配置
func DefaultReachabilityConfig() ReachabilityConfig {
	return ReachabilityConfig{
		Source:                ReachabilitySourcePolling,
		PollInterval:          Duration(5 * time.Second),
		SlowSubscriberTimeout: Duration(100 * time.Millisecond),
	}
}

// Validate 验证可达性配置
func (c *ReachabilityConfig) Validate() error {
	switch c.Source {
	case ReachabilitySourcePolling:
		if c.PollInterval <= 0 {
			return fmt.Errorf("reachability: poll_interval must be positive")
		}
	case ReachabilitySourceManual:
	default:
		return fmt.Errorf("reachability: unknown source %q", c.Source)
	}
	if c.SlowSubscriberTimeout <= 0 {
		return fmt.Errorf("reachability: slow_subscriber_timeout must be positive")
	}
	return nil
}

// VerificationConfig 验证码配置
type VerificationConfig struct {
	// DefaultMedia 未指定时的下发媒介，空表示由服务器决定
	DefaultMedia string `json:"default_media" toml:"default_media"`
}

// DefaultVerificationConfig 返回默认验证配置
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{}
}

// LogConfig 日志配置
type LogConfig struct {
	// Level debug | info | warn | error
	Level string `json:"level" toml:"level"`

	// Format text | json
	Format string `json:"format" toml:"format"`

	// FxEvents 输出 fx 依赖注入事件日志
	FxEvents bool `json:"fx_events" toml:"fx_events"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
	return nil
}
