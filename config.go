package pushclient

import (
	"fmt"

	"github.com/dep2p/go-pushclient/config"
)

// Config 完整配置
//
// 库本身只在 WithConfigFile / WithEnv 时读取文件与环境变量，
// 其余场景由应用层构造 Config 后通过 WithConfig 传入：
//
//	cfg, err := pushclient.LoadConfig("pushclient.toml")
//	client, err := pushclient.New(pushclient.WithConfig(cfg))
type Config = config.Config

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return config.NewConfig()
}

// LoadConfig 从 .json 或 .toml 文件加载配置
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// WithConfigFile 从文件加载基础配置，优先于 WithConfig
func WithConfigFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("config file path cannot be empty")
		}
		o.configFile = path
		return nil
	}
}

// WithEnv 叠加 PUSHCLIENT_* 环境变量
//
// 环境变量覆盖配置文件与 WithConfig，显式选项覆盖环境变量。
func WithEnv() Option {
	return func(o *options) error {
		o.applyEnv = true
		return nil
	}
}
