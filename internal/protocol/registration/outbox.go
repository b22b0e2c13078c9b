package registration

import (
	"sort"
	"time"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// PendingRequest 等待重放的请求
type PendingRequest struct {
	// Seq 入队序号，决定重放顺序
	Seq uint64

	// Request 已编码的请求
	Request *types.Request

	// Subject 请求对象（频道名或消息 ID），用于处理响应
	Subject string

	QueuedAt      time.Time
	Attempts      int
	LastAttemptAt time.Time
	LastError     string
}

// Outbox 有序的离线请求队列
type Outbox struct {
	seq   uint64
	items []PendingRequest
}

// NewOutbox 创建队列
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue 追加请求并分配序号
func (o *Outbox) Enqueue(req *types.Request, subject string, at time.Time) PendingRequest {
	o.seq++
	item := PendingRequest{
		Seq:      o.seq,
		Request:  req,
		Subject:  subject,
		QueuedAt: at,
	}
	o.items = append(o.items, item)
	return item
}

// Drain 取出全部请求，按序号排列，并登记一次尝试
func (o *Outbox) Drain(at time.Time) []PendingRequest {
	out := o.items
	o.items = nil
	for i := range out {
		out[i].Attempts++
		out[i].LastAttemptAt = at
	}
	return out
}

// Requeue 将发送失败的请求放回队列，保持序号顺序
func (o *Outbox) Requeue(item PendingRequest, lastErr error) {
	if lastErr != nil {
		item.LastError = lastErr.Error()
	}
	i := sort.Search(len(o.items), func(i int) bool {
		return o.items[i].Seq >= item.Seq
	})
	if i < len(o.items) && o.items[i].Seq == item.Seq {
		o.items[i] = item
		return
	}
	o.items = append(o.items, PendingRequest{})
	copy(o.items[i+1:], o.items[i:])
	o.items[i] = item
}

// Remove 删除尚未发出的某类请求，返回删除数量
func (o *Outbox) Remove(op types.Op, subject string) int {
	kept := o.items[:0]
	n := 0
	for _, item := range o.items {
		if item.Request.Op == op && item.Subject == subject {
			n++
			continue
		}
		kept = append(kept, item)
	}
	o.items = kept
	return n
}

// RemoveOps 删除尚未发出的指定操作请求
func (o *Outbox) RemoveOps(ops ...types.Op) int {
	kept := o.items[:0]
	n := 0
	for _, item := range o.items {
		if containsOp(ops, item.Request.Op) {
			n++
			continue
		}
		kept = append(kept, item)
	}
	o.items = kept
	return n
}

func containsOp(ops []types.Op, op types.Op) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// Clear 清空队列
func (o *Outbox) Clear() {
	o.items = nil
}

// List 返回队列快照
func (o *Outbox) List() []PendingRequest {
	out := make([]PendingRequest, len(o.items))
	copy(out, o.items)
	return out
}

// Len 队列长度
func (o *Outbox) Len() int {
	return len(o.items)
}
