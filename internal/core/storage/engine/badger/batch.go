package badger

import (
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
)

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// WriteBatch BadgerDB 批量写入实现
//
// 操作先缓存在内存，Write 时在单个读写事务内提交，
// 要么全部生效要么全部不生效。
type WriteBatch struct {
	db *Engine

	mu  sync.Mutex
	ops []batchOp
}

// Put 添加一个写入操作到批量中
func (b *WriteBatch) Put(key, value []byte) {
	if len(key) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

// Delete 添加一个删除操作到批量中
func (b *WriteBatch) Delete(key []byte) {
	if len(key) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
}

// Write 执行批量写入
func (b *WriteBatch) Write() error {
	if b.db.closed.Load() {
		return engine.ErrClosed
	}

	b.mu.Lock()
	ops := b.ops
	b.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	err := b.db.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return convertError(err)
	}

	b.db.stats.numWrites.Add(int64(len(ops)))
	b.Reset()
	return nil
}

// Reset 重置批量对象
func (b *WriteBatch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// Size 返回批量中的操作数量
func (b *WriteBatch) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// 编译时检查接口实现
var _ engine.Batch = (*WriteBatch)(nil)
