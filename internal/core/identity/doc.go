// Package identity 提供客户端身份的持久化管理
//
// 身份包括设备令牌、应用 ID、用户 ID 与已订阅频道，保存在
// 存储引擎 "id/" 前缀下，每个字段一个键：
//
//	id/token     设备令牌（原始字节）
//	id/app       应用 ID
//	id/user      用户 ID
//	id/channels  频道列表（JSON 数组，保持插入顺序）
//
// Save 与 Reset 使用原子批量写入，重启后读到的要么是旧身份要么是新身份。
// Store 在内存中缓存最新身份，Snapshot 返回深拷贝。
package identity
