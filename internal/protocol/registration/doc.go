// Package registration 维护注册请求与离线请求队列
//
// Registrar 记录待发送与已发出的应用/用户注册请求。每个请求带有代号，
// 被新请求取代后，其迟到响应不再生效；连接中断时已发出的请求退回待发送，
// 在下一次 Connected 后重发。
//
// Outbox 保存需要在连接恢复后按顺序重放的服务器请求（订阅、退订、
// 消息回执、已读、忽略、设备令牌、崩溃上报），按入队序号排序。
//
// 两者都不做同步，只能在会话执行器内调用。
package registration
