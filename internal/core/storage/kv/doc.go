// Package kv 提供简化的键值存储接口
//
// kv 在 engine.InternalEngine 基础上提供前缀隔离、JSON 便捷方法
// 与原子批量写入，供身份存储使用。
package kv
