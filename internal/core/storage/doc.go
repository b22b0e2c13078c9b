// Package storage 提供客户端持久化存储
//
// # 架构
//
//	storage/
//	├── engine/      引擎接口、错误、配置
//	│   └── badger/  BadgerDB 实现（持久化或纯内存）
//	└── kv/          前缀隔离的 KV 封装
//
// 身份存储（internal/core/identity）通过 kv.Store 读写 "id/" 前缀下的键，
// 多键更新使用原子批量写入。
//
// # Fx 模块
//
// Module() 提供 engine.InternalEngine，并在 OnStop 时关闭引擎。
// 配置取自 config.Config.Storage：
//
//	[storage]
//	data_dir    = "./data"
//	in_memory   = false
//	sync_writes = true
package storage
