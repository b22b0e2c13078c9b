// Package interfaces 定义 pushclient 的公共接口
//
// 外部协作方契约：
//   - transport.go    - 与服务器之间的请求/响应/推送通道
//   - reachability.go - 平台网络可达性来源
//   - storage.go      - 身份持久化的键值引擎
//   - eventbus.go     - 进程级广播总线
//   - observer.go     - 观察者能力接口
package interfaces
