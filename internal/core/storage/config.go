package storage

import (
	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine/badger"
)

// ConfigFromUnified 从统一配置构建引擎配置
//
// cfg 为 nil 时使用默认存储配置。
func ConfigFromUnified(cfg *config.Config) *engine.Config {
	sc := config.DefaultStorageConfig()
	if cfg != nil {
		sc = cfg.Storage
	}

	if sc.InMemory {
		ec := engine.InMemoryConfig()
		ec.Logger = badger.SlogLogger{}
		return ec
	}

	ec := engine.DefaultConfig(sc.DBPath())
	ec.SyncWrites = sc.SyncWrites
	ec.Logger = badger.SlogLogger{}
	return ec
}
