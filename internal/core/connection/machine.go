package connection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("core/connection")

// ErrInvalidTransition 非法状态转换
var ErrInvalidTransition = errors.New("connection: invalid state transition")

// allowed 合法转换表（DisconnectedError 另行放行）
var allowed = map[types.ConnectionState][]types.ConnectionState{
	types.ConnectingStart:   {types.Connecting},
	types.Connecting:        {types.Connected, types.Disconnected},
	types.Connected:         {types.Disconnected, types.Connecting},
	types.Disconnected:      {types.Connecting},
	types.DisconnectedError: {types.Connecting},
}

// CanTransition 检查 from → to 是否合法
func CanTransition(from, to types.ConnectionState) bool {
	if from == to {
		return false
	}
	if to == types.DisconnectedError {
		return true
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine 连接状态机
type Machine struct {
	clock clock.Clock

	mu          sync.RWMutex
	state       types.ConnectionState
	lastErr     error
	authBlocked bool
	transitions uint64
}

// NewMachine 创建状态机，初始状态为 ConnectingStart
func NewMachine(clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.New()
	}
	return &Machine{
		clock: clk,
		state: types.ConnectingStart,
	}
}

// State 返回当前状态
func (m *Machine) State() types.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError 返回最近一次进入 DisconnectedError 时携带的错误
func (m *Machine) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Transitions 返回成功转换次数
func (m *Machine) Transitions() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transitions
}

// Transition 执行状态转换
//
// 非法或空转换返回 ErrInvalidTransition，状态不变。
func (m *Machine) Transition(to types.ConnectionState, reason types.StateChangeReason, err error) (types.StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	if !CanTransition(from, to) {
		return types.StateChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	m.state = to
	m.transitions++
	switch to {
	case types.DisconnectedError:
		m.lastErr = err
	case types.Connected:
		m.lastErr = nil
	}

	change := types.StateChange{
		Previous: from,
		Current:  to,
		Reason:   reason,
		Err:      err,
		At:       m.clock.Now(),
	}

	logger.Debug("连接状态转换",
		"from", from.String(),
		"to", to.String(),
		"reason", reason.String(),
		"error", err)
	return change, nil
}

// ============================================================================
//                              认证锁存
// ============================================================================

// BlockAuth 设置认证锁存：禁止自动重连，可达性恢复也不解除
func (m *Machine) BlockAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authBlocked {
		logger.Warn("认证被拒绝，暂停自动重连")
	}
	m.authBlocked = true
}

// ClearAuth 清除认证锁存，仅在重新注册应用时调用
func (m *Machine) ClearAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authBlocked = false
}

// AuthBlocked 是否处于认证锁存
func (m *Machine) AuthBlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authBlocked
}

// CanAutoConnect 当前状态是否允许自动发起连接
func (m *Machine) CanAutoConnect() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.authBlocked {
		return false
	}
	return CanTransition(m.state, types.Connecting)
}
