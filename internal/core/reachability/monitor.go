package reachability

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 可达性监控器
//
// 订阅 Source，缓存最后已知状态，只在状态变化时通知订阅者。
type Monitor struct {
	source pkgif.ReachabilitySource

	mu     sync.RWMutex
	status types.ReachabilityStatus

	hub *hub

	startOnce sync.Once
	stopOnce  sync.Once
	cancelSub func()
	wg        sync.WaitGroup
}

var _ pkgif.ReachabilityMonitor = (*Monitor)(nil)

// NewMonitor 创建监控器
//
// slowTimeout 为订阅者通道已满时的发送超时。
func NewMonitor(source pkgif.ReachabilitySource, clk clock.Clock, slowTimeout time.Duration) *Monitor {
	return &Monitor{
		source: source,
		status: source.Current().Normalize(),
		hub:    newHub(clk, slowTimeout),
	}
}

// Start 启动来源并开始转发变化
func (m *Monitor) Start(ctx context.Context) error {
	var err error
	m.startOnce.Do(func() {
		// 先订阅再启动，避免漏掉启动时的首次变化
		ch, cancel := m.source.Subscribe()
		m.cancelSub = cancel

		if err = m.source.Start(ctx); err != nil {
			cancel()
			return
		}
		m.apply(m.source.Current())

		m.wg.Add(1)
		go m.loop(ch)

		logger.Info("可达性监控器已启动",
			"reachable", m.Status().Reachable,
			"network", m.Status().NetworkType.String())
	})
	return err
}

// Stop 停止来源并关闭所有订阅
func (m *Monitor) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		err = m.source.Stop()
		if m.cancelSub != nil {
			m.cancelSub()
		}
		m.wg.Wait()
		m.hub.closeAll()
		logger.Info("可达性监控器已停止")
	})
	return err
}

// Status 同步返回最后已知状态
func (m *Monitor) Status() types.ReachabilityStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Subscribe 订阅状态变化
func (m *Monitor) Subscribe() (<-chan types.ReachabilityStatus, func()) {
	return m.hub.subscribe()
}

func (m *Monitor) loop(ch <-chan types.ReachabilityStatus) {
	defer m.wg.Done()
	for status := range ch {
		m.apply(status)
	}
}

func (m *Monitor) apply(status types.ReachabilityStatus) {
	status = status.Normalize()

	m.mu.Lock()
	if status == m.status {
		m.mu.Unlock()
		return
	}
	prev := m.status
	m.status = status
	m.mu.Unlock()

	logger.Debug("可达性变化",
		"from_reachable", prev.Reachable,
		"to_reachable", status.Reachable,
		"network", status.NetworkType.String())
	m.hub.notify(status)
}
