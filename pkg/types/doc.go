// Package types 定义 pushclient 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 pushclient 内部包。
//
// # 文件组织
//
//   - errors.go       - 错误域、错误码与哨兵错误
//   - connection.go   - ConnectionState, StateChange
//   - reachability.go - ReachabilityStatus, NetworkType
//   - identity.go     - Identity, Credentials
//   - payload.go      - 类型化键值载荷（字符串/数值/嵌套映射）
//   - message.go      - Message, Delivery
//   - verification.go - VerificationSession
//   - events.go       - 事件流中的所有事件类型
//   - wire.go         - 传输层请求/响应信封与请求体
package types
