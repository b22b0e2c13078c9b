package reachability

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ManualSource 由平台封装层推送状态的可达性来源
type ManualSource struct {
	// updateMu 串行化推送，保证通知顺序与更新顺序一致
	updateMu sync.Mutex

	mu      sync.RWMutex
	current types.ReachabilityStatus
	hub     *hub
}

var _ pkgif.ReachabilitySource = (*ManualSource)(nil)

// NewManualSource 创建手动来源，initial 为初始状态
func NewManualSource(initial types.ReachabilityStatus) *ManualSource {
	return &ManualSource{
		current: initial.Normalize(),
		hub:     newHub(clock.New(), 0),
	}
}

// Update 推送新状态，与当前相同时忽略
func (s *ManualSource) Update(status types.ReachabilityStatus) {
	status = status.Normalize()

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	if status == s.current {
		s.mu.Unlock()
		return
	}
	s.current = status
	s.mu.Unlock()

	s.hub.notify(status)
}

// Current 实现 ReachabilitySource
func (s *ManualSource) Current() types.ReachabilityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe 实现 ReachabilitySource
func (s *ManualSource) Subscribe() (<-chan types.ReachabilityStatus, func()) {
	return s.hub.subscribe()
}

// Start 实现 ReachabilitySource
func (s *ManualSource) Start(context.Context) error { return nil }

// Stop 实现 ReachabilitySource
func (s *ManualSource) Stop() error {
	s.hub.closeAll()
	return nil
}
