// Package lifecycle 提供客户端生命周期协调器
//
// 阶段按序推进：
//   - created: 已创建依赖图，未启动
//   - starting: 存储与身份就绪，正在启动各模块
//   - running: 会话执行器已运行
//   - stopping: 正在关闭
//   - stopped: 全部关闭完成
//
// 另提供首次连接 gate，供调用方等待与服务器建立第一个连接。
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 生命周期阶段
type Phase int

const (
	// PhaseCreated 已创建，未启动
	PhaseCreated Phase = iota

	// PhaseStarting 正在启动
	PhaseStarting

	// PhaseRunning 稳态运行
	PhaseRunning

	// PhaseStopping 正在关闭
	PhaseStopping

	// PhaseStopped 关闭完成
	PhaseStopped
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// ============================================================================
//                              生命周期协调器
// ============================================================================

// Coordinator 生命周期协调器
type Coordinator struct {
	mu sync.RWMutex

	phase Phase

	// 阶段完成信号，关闭表示已到达
	phaseSignals map[Phase]chan struct{}

	// 首次连接 gate，只关闭一次
	connectedChan chan struct{}
	connected     bool

	onPhaseChange []func(old, new Phase)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		phase:         PhaseCreated,
		phaseSignals:  make(map[Phase]chan struct{}),
		connectedChan: make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
	for p := PhaseCreated; p <= PhaseStopped; p++ {
		c.phaseSignals[p] = make(chan struct{})
	}
	close(c.phaseSignals[PhaseCreated])
	return c
}

// ============================================================================
//                              阶段管理
// ============================================================================

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 只能向前推进，中间阶段的信号一并完成。
func (c *Coordinator) AdvanceTo(target Phase) error {
	if target < PhaseCreated || target > PhaseStopped {
		return fmt.Errorf("invalid phase: %d", target)
	}

	c.mu.Lock()
	if target < c.phase {
		current := c.phase
		c.mu.Unlock()
		return fmt.Errorf("cannot advance backwards: current=%s target=%s", current, target)
	}
	if target == c.phase {
		c.mu.Unlock()
		return nil
	}

	old := c.phase
	for p := old + 1; p <= target; p++ {
		close(c.phaseSignals[p])
	}
	c.phase = target
	callbacks := make([]func(old, new Phase), len(c.onPhaseChange))
	copy(callbacks, c.onPhaseChange)
	c.mu.Unlock()

	logger.Info("生命周期阶段推进", "from", old.String(), "to", target.String())
	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// WaitFor 等待到达指定阶段
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("invalid phase: %d", phase)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForWithTimeout 带超时等待到达指定阶段
func (c *Coordinator) WaitForWithTimeout(phase Phase, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.WaitFor(ctx, phase)
}

// IsCompleted 是否已到达指定阶段
func (c *Coordinator) IsCompleted(phase Phase) bool {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              首次连接 Gate
// ============================================================================

// SetConnected 标记已与服务器建立过连接
func (c *Coordinator) SetConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return
	}
	c.connected = true
	close(c.connectedChan)
	logger.Info("首次连接已建立")
}

// WaitConnected 等待首次连接
//
// 协调器停止后返回 context.Canceled。
func (c *Coordinator) WaitConnected(ctx context.Context) error {
	c.mu.RLock()
	ch := c.connectedChan
	c.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// IsConnected 是否已建立过连接
func (c *Coordinator) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ============================================================================
//                              回调与关闭
// ============================================================================

// OnPhaseChange 注册阶段变更回调，在推进者的 goroutine 上同步调用
func (c *Coordinator) OnPhaseChange(callback func(old, new Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, callback)
}

// Stop 停止协调器，解除首次连接等待
func (c *Coordinator) Stop() {
	c.cancel()
}

// Context 返回协调器上下文，Stop 后取消
func (c *Coordinator) Context() context.Context {
	return c.ctx
}
