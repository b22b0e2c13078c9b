// Package engine 定义存储引擎接口
//
// engine 提供存储引擎的抽象接口，允许使用不同的底层存储实现。
//
// # 接口
//
//   - InternalEngine: 存储引擎主接口（Get/Put/Delete/Has + 批量 + 前缀扫描）
//   - Batch: 原子批量写入
//
// # 实现
//
//   - badger: BadgerDB 实现（默认，支持纯内存模式）
package engine
