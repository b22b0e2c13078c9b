// Package reachability 提供网络可达性监控
//
// # 核心组件
//
// Source - 平台可达性来源（网络可用性的唯一事实来源）:
//   - PollingSource: 定期扫描本机网卡，按接口名区分 WiFi / 蜂窝
//   - ManualSource: 由平台封装层推送 Update(status)
//
// Monitor - 可达性监控器:
//   - 缓存最后已知状态，Status() 同步返回
//   - 只在状态变化时通知订阅者
//   - 订阅者处理过慢时带超时发送，超时后丢弃并告警
//
// # 判定规则
//
// 存在至少一个已启用、非回环且带单播地址的接口即视为可达。
// 接口名前缀 wl / wlan / wifi（以及 darwin 上的 en0）归为 WiFi，
// rmnet / pdp_ip / wwan / ccmni 归为蜂窝，其余有线接口按 WiFi 处理。
//
// # Fx 模块
//
//	fx.New(
//	    reachability.Module(),
//	    fx.Invoke(func(m pkgif.ReachabilityMonitor) { ... }),
//	)
package reachability
