// Package badger 实现 BadgerDB 存储引擎
//
// badger 使用 BadgerDB 作为底层存储，保存客户端身份等少量持久状态。
//
// # 配置
//
//	cfg := engine.DefaultConfig("/path/to/data")  // 持久化
//	cfg := engine.InMemoryConfig()                // 纯内存（测试、临时会话）
//
// # 使用示例
//
//	eng, err := badger.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	err = eng.Put([]byte("key"), []byte("value"))
//	value, err := eng.Get([]byte("key"))
package badger
