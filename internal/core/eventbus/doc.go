// Package eventbus 实现进程级广播总线
//
// 以事件类别名称为键（如 "pushclient.message.received"），
// 载荷为可重建状态的最小映射。支持：
//   - 多订阅者
//   - 缓冲区配置
//   - 满缓冲丢弃与慢消费者告警
//   - 有状态类别（新订阅者立即收到最后一条）
//
// # 快速开始
//
//	bus := eventbus.Default()
//	sub, _ := bus.Subscribe(types.CategoryConnectionChanged)
//	defer sub.Close()
//
//	for msg := range sub.Out() {
//	    state := msg.Payload["state"]
//	}
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
package eventbus
