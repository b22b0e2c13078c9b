package engine

import (
	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
)

// InternalEngine 内部存储引擎接口
//
// 在公共 interfaces.Engine 基础上增加原子批量写入与前缀扫描。
type InternalEngine interface {
	pkgif.Engine // 嵌入公共接口

	// NewBatch 创建批量写入对象，Write 时原子提交
	NewBatch() Batch

	// ScanPrefix 按键序遍历指定前缀的键值对，fn 返回 false 时停止
	//
	// 传给 fn 的切片只在回调期间有效。
	ScanPrefix(prefix []byte, fn func(key, value []byte) bool) error
}

// Batch 批量写入接口
type Batch interface {
	// Put 添加写入操作
	Put(key, value []byte)

	// Delete 添加删除操作
	Delete(key []byte)

	// Write 原子提交全部操作，之后批量对象被重置
	Write() error

	// Reset 清空未提交的操作
	Reset()

	// Size 返回未提交的操作数量
	Size() int
}
