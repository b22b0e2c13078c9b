// Package websocket 实现基于 WebSocket 的推送服务器传输层
//
// # 线上格式
//
// 每个文本帧是一个 JSON 编码的 Frame：
//
//	{"type":"request",  "request":  {"id":"…","op":"channel.subscribe","body":{…}}}
//	{"type":"response", "response": {"id":"…","ok":true,"body":{…}}}
//	{"type":"push",     "push":     {"kind":"message","body":{…}}}
//
// 请求 ID 由传输层以 UUID 分配，响应按 ID 匹配。
//
// # 握手
//
// 拨号成功后客户端发送 op 为 "hello" 的请求，携带 types.Hello。
// 服务器以 reason "auth" 拒绝时 Connect 返回 types.ErrAuthRejected；
// HTTP 升级阶段的 401/403 同样视为认证拒绝。
//
// # 关闭
//
// 服务器以 1008 (policy violation) 关闭表示撤销身份，OnClosed 收到
// ErrAuthRejected；1000/1001 视为正常关闭，OnClosed 收到 nil。
// 连接断开时先调用 OnClosed，再以 ErrConnectionFailed 完成全部挂起请求。
package websocket
