// Package session 实现推送客户端的会话执行器
//
// Manager 是单一逻辑执行者：所有状态变更（连接状态、身份、验证会话、
// 消息追踪、离线队列）都以闭包形式投递到同一个无界邮箱，由一个
// goroutine 依次执行。
//
// 触发来源：
//
//   - 应用调用：公共方法投递守卫闭包并等待其执行完毕，守卫失败时同步返回
//     类型化错误，通过守卫后立即返回，不等待网络
//   - 传输层：连接结果、请求响应、服务器推送与断线
//   - 可达性监控：状态变化
//   - 退避定时器：重连
//
// 所有结果经 fanout.Dispatcher 依次送达类别处理函数、观察者、
// 进程级广播与单次回调。
//
// 连接流程：
//
//	可达 ──▶ Connecting ──握手成功──▶ Connected ──▶ 派发注册 ──▶ 重放离线队列
//	              │
//	              ├──握手失败──▶ DisconnectedError ──退避──▶ Connecting
//	              └──认证拒绝──▶ DisconnectedError（锁定，不自动重试）
package session
