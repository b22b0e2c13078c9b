// Package pushclient 提供推送消息服务的客户端会话管理
//
// Client 维护与推送服务器之间的长连接，协调网络可达性变化、服务器应答、
// 注册与验证调用以及服务器推送，对外呈现一致的连接状态与注册身份。
// 身份信息持久化在本地存储中，进程重启后恢复。
//
// # 快速开始
//
//	client, err := pushclient.Start(ctx,
//	    pushclient.WithServerURL("wss://push.acme.com/ws"),
//	    pushclient.WithDataDir("/var/lib/acme"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	_ = client.RegisterApplication("com.acme.app", pushclient.Credentials{
//	    Username: "acme",
//	    Password: "secret",
//	})
//	_ = client.Subscribe("news")
//
// # 事件
//
// 每个事件依次送达三处：
//
//   - 按类别设置的单一处理函数（SetHandler，后设置者生效）
//   - 有序观察者集合（AddObserver），观察者实现任意观察接口子集
//   - 进程级广播总线，以类别名称为键
//
// 单次调用的完成回调最后执行。任何一处 panic 都会被恢复，不影响其余各处。
//
// # 文件组织
//
//   - client.go: Client 与会话操作
//   - observe.go: 观察者与处理函数
//   - options.go: 构造选项
//   - config.go: 配置文件与环境变量
//   - fx.go: 依赖注入装配
//   - default.go: 进程级默认实例
package pushclient
