// Package verification 维护按用户划分的验证码会话
//
// 每个 userID 同时至多一个 Pending/Sent 会话。新的验证码请求以新的代号
// 取代旧会话，携带旧代号的迟到响应一律丢弃。
//
// 会话流转：
//
//	Pending ──发送成功──▶ Sent ──校验通过──▶ Verified
//	   │                   │
//	   └──请求失败──▶ Failed ◀──校验失败──┘
//
// Registry 只由会话执行器调用，内部锁仅用于对外的只读快照。
package verification
