// Package connection 提供服务器连接状态机与重连退避
//
// # 状态转换
//
//	ConnectingStart ──► Connecting ──► Connected
//	                        │  ▲           │
//	                        ▼  │           ▼
//	     DisconnectedError ◄──┴──── Disconnected
//
// 合法转换见 allowed 表；任意状态都可因不可恢复错误进入 DisconnectedError。
// 新旧状态相同的转换被拒绝，每次成功转换恰好产生一个 StateChange。
//
// Machine 本身不持有 goroutine，由会话 actor 串行驱动；
// 读取方法加锁，可从任意 goroutine 调用。
package connection
