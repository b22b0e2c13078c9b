// Package transport 提供与推送服务器之间的传输层
//
// 会话核心只依赖 interfaces.Transport 的请求/响应与推送语义，
// 不关心线上编码。默认实现为 websocket 子包中的 JSON-over-WebSocket 传输，
// 调用方可通过名为 "transport_override" 的依赖替换为自有实现（平台通道或测试桩）。
//
// # 使用示例
//
//	fx.New(
//	    fx.Supply(cfg),
//	    transport.Module(),
//	    fx.Invoke(func(t interfaces.Transport) { ... }),
//	)
package transport
