package connection

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/pkg/types"
)

var allStates = []types.ConnectionState{
	types.ConnectingStart,
	types.Connecting,
	types.Connected,
	types.Disconnected,
	types.DisconnectedError,
}

func TestMachine_InitialState(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, types.ConnectingStart, m.State())
	assert.Nil(t, m.LastError())
	assert.False(t, m.AuthBlocked())
	assert.True(t, m.CanAutoConnect())
}

func TestMachine_HappyPath(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1700000000, 0))
	m := NewMachine(mock)

	change, err := m.Transition(types.Connecting, types.ReasonReachable, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectingStart, change.Previous)
	assert.Equal(t, types.Connecting, change.Current)
	assert.Equal(t, mock.Now(), change.At)

	change, err = m.Transition(types.Connected, types.ReasonHandshakeSucceeded, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Connected, change.Current)

	_, err = m.Transition(types.Disconnected, types.ReasonReachabilityLost, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.Transitions())
}

func TestMachine_RejectsNoOp(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range allStates {
		assert.False(t, CanTransition(s, s), "self-transition allowed for %s", s)
	}

	_, err := m.Transition(types.ConnectingStart, types.ReasonUnknown, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, uint64(0), m.Transitions())
}

func TestMachine_RejectsIllegal(t *testing.T) {
	tests := []struct {
		from, to types.ConnectionState
	}{
		{types.ConnectingStart, types.Connected},
		{types.ConnectingStart, types.Disconnected},
		{types.Disconnected, types.Connected},
		{types.DisconnectedError, types.Connected},
		{types.DisconnectedError, types.Disconnected},
		{types.Connected, types.ConnectingStart},
	}
	for _, tt := range tests {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMachine_DisconnectedErrorFromAny(t *testing.T) {
	for _, s := range allStates {
		if s == types.DisconnectedError {
			continue
		}
		assert.True(t, CanTransition(s, types.DisconnectedError), "%s -> disconnected_error", s)
	}
}

func TestMachine_LastError(t *testing.T) {
	m := NewMachine(nil)
	boom := errors.New("handshake timeout")

	_, err := m.Transition(types.Connecting, types.ReasonReachable, nil)
	require.NoError(t, err)
	change, err := m.Transition(types.DisconnectedError, types.ReasonHandshakeFailed, boom)
	require.NoError(t, err)
	assert.Equal(t, boom, change.Err)
	assert.Equal(t, boom, m.LastError())

	_, _ = m.Transition(types.Connecting, types.ReasonBackoffRetry, nil)
	_, _ = m.Transition(types.Connected, types.ReasonHandshakeSucceeded, nil)
	assert.Nil(t, m.LastError())
}

func TestMachine_AuthLatch(t *testing.T) {
	m := NewMachine(nil)
	_, _ = m.Transition(types.Connecting, types.ReasonReachable, nil)
	_, _ = m.Transition(types.DisconnectedError, types.ReasonAuthRejected, types.ErrAuthRejected)
	m.BlockAuth()

	assert.True(t, m.AuthBlocked())
	assert.False(t, m.CanAutoConnect())

	m.ClearAuth()
	assert.True(t, m.CanAutoConnect())
}

// TestMachine_RandomSequences 任意事件序列下只有一个当前状态，且从不产生空转换
func TestMachine_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		m := NewMachine(nil)
		for step := 0; step < 50; step++ {
			before := m.State()
			to := allStates[rng.Intn(len(allStates))]

			change, err := m.Transition(to, types.ReasonUnknown, nil)
			if err != nil {
				require.ErrorIs(t, err, ErrInvalidTransition)
				require.Equal(t, before, m.State())
				continue
			}
			require.NotEqual(t, change.Previous, change.Current)
			require.Equal(t, before, change.Previous)
			require.Equal(t, to, m.State())
		}
	}
}
