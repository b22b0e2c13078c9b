// Package config 提供 pushclient 的统一配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 各自提供 DefaultXxx() 与 Validate()。
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Server.URL = "wss://push.acme.com/ws"
//
//	// 从文件加载（.json 或 .toml），再叠加环境变量
//	cfg, err := config.Load("pushclient.toml")
//	err = config.ApplyEnv(ctx, cfg)
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

// Config 是 pushclient 的完整配置结构
type Config struct {
	// Server 推送服务器
	Server ServerConfig `json:"server" toml:"server"`

	// Connection 连接状态机与退避
	Connection ConnectionConfig `json:"connection" toml:"connection"`

	// Reachability 网络可达性监控
	Reachability ReachabilityConfig `json:"reachability" toml:"reachability"`

	// Storage 身份持久化
	Storage StorageConfig `json:"storage" toml:"storage"`

	// Verification 验证码
	Verification VerificationConfig `json:"verification" toml:"verification"`

	// Log 日志
	Log LogConfig `json:"log" toml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Connection:   DefaultConnectionConfig(),
		Reachability: DefaultReachabilityConfig(),
		Storage:      DefaultStorageConfig(),
		Verification: DefaultVerificationConfig(),
		Log:          DefaultLogConfig(),
	}
}

// Validate 递归验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Connection.Validate(); err != nil {
		return err
	}
	if err := c.Reachability.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Clone 返回配置副本
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// ============================================================================
//                              加载
// ============================================================================

// Load 从文件加载配置，未出现的字段保留默认值
//
// 按扩展名选择格式：.json 或 .toml。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := NewConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromJSON 从 JSON 字节加载配置
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ToJSON 序列化为缩进 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// envOverrides 可由环境变量覆盖的字段
//
// 全部为指针：变量未设置时保持 nil，不改动文件或默认值。
type envOverrides struct {
	ServerURL      *string   `env:"PUSHCLIENT_SERVER_URL,noinit"`
	DevelopmentURL *string   `env:"PUSHCLIENT_DEVELOPMENT_URL,noinit"`
	Development    *bool     `env:"PUSHCLIENT_DEVELOPMENT,noinit"`
	UseTLS         *bool     `env:"PUSHCLIENT_USE_TLS,noinit"`
	BackoffInitial *Duration `env:"PUSHCLIENT_BACKOFF_INITIAL,noinit"`
	BackoffMax     *Duration `env:"PUSHCLIENT_BACKOFF_MAX,noinit"`
	Reachability   *string   `env:"PUSHCLIENT_REACHABILITY_SOURCE,noinit"`
	DataDir        *string   `env:"PUSHCLIENT_DATA_DIR,noinit"`
	InMemory       *bool     `env:"PUSHCLIENT_STORAGE_IN_MEMORY,noinit"`
	LogLevel       *string   `env:"PUSHCLIENT_LOG_LEVEL,noinit"`
	LogFormat      *string   `env:"PUSHCLIENT_LOG_FORMAT,noinit"`
}

// ApplyEnv 用 PUSHCLIENT_* 环境变量覆盖配置
func ApplyEnv(ctx context.Context, cfg *Config) error {
	return applyEnv(ctx, cfg, envconfig.OsLookuper())
}

func applyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	var o envOverrides
	if err := envconfig.ProcessWith(ctx, &o, l); err != nil {
		return fmt.Errorf("parsing env vars: %w", err)
	}

	setIf(&cfg.Server.URL, o.ServerURL)
	setIf(&cfg.Server.DevelopmentURL, o.DevelopmentURL)
	setIf(&cfg.Server.Development, o.Development)
	setIf(&cfg.Server.UseTLS, o.UseTLS)
	setIf(&cfg.Connection.Backoff.Initial, o.BackoffInitial)
	setIf(&cfg.Connection.Backoff.Max, o.BackoffMax)
	setIf(&cfg.Reachability.Source, o.Reachability)
	setIf(&cfg.Storage.DataDir, o.DataDir)
	setIf(&cfg.Storage.InMemory, o.InMemory)
	setIf(&cfg.Log.Level, o.LogLevel)
	setIf(&cfg.Log.Format, o.LogFormat)

	return cfg.Validate()
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
