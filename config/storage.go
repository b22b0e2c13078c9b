package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 身份信息保存在 BadgerDB 中，目录结构：
//
//	${DataDir}/
//	└── pushclient.db/      # BadgerDB 数据库
type StorageConfig struct {
	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir" toml:"data_dir"`

	// InMemory 使用内存模式，进程退出后身份丢失（测试用）
	InMemory bool `json:"in_memory" toml:"in_memory"`

	// SyncWrites 每次写入同步落盘
	SyncWrites bool `json:"sync_writes" toml:"sync_writes"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:    "./data",
		SyncWrites: true,
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "pushclient.db")
}
