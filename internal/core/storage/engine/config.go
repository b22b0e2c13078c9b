package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config 存储引擎配置
type Config struct {
	// Path 数据目录路径，InMemory 时忽略
	Path string

	// InMemory 纯内存模式，进程退出即丢失
	InMemory bool

	// SyncWrites 是否同步写入
	// 启用后每次写入都会同步到磁盘，更安全但性能较低
	SyncWrites bool

	// Logger 日志记录器
	// 如果为 nil，将禁用 BadgerDB 内部日志
	Logger Logger
}

// Logger BadgerDB 风格的日志接口
type Logger interface {
	Errorf(format string, args ...any)
	Warningf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// DefaultConfig 返回持久化模式的默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig 返回纯内存模式配置
func InMemoryConfig() *Config {
	return &Config{InMemory: true}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	return os.MkdirAll(filepath.Clean(c.Path), 0o700)
}
