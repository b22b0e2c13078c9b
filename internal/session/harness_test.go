package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-pushclient/config"
	"github.com/dep2p/go-pushclient/internal/core/identity"
	"github.com/dep2p/go-pushclient/internal/core/reachability"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/core/storage/engine/badger"
	"github.com/dep2p/go-pushclient/internal/testutil/faketransport"
	"github.com/dep2p/go-pushclient/pkg/types"
)

const (
	testApp   = "com.acme.app"
	testUserA = "+15551234567"
	testUserB = "+15557654321"
)

var (
	testCreds = types.Credentials{Username: "acme", Password: "secret"}
	wifi      = types.ReachabilityStatus{Reachable: true, NetworkType: types.NetworkWiFi}
)

// ============================================================================
//                              recorder
// ============================================================================

// recorder 实现全部观察者接口
type recorder struct {
	mu         sync.Mutex
	states     []types.StateChange
	regs       []types.RegistrationEvent
	codes      []types.VerificationCodeEvent
	verifies   []types.VerifyUserCodeEvent
	messages   []*types.Message
	delivered  []types.MessageDeliveredEvent
	deliveries []types.Delivery
	reach      []types.ReachabilityStatus
}

func (r *recorder) OnConnectionStateChanged(c types.StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, c)
}

func (r *recorder) OnRegistration(ev types.RegistrationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, ev)
}

func (r *recorder) OnVerificationCode(ev types.VerificationCodeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, ev)
}

func (r *recorder) OnVerifyUserCode(ev types.VerifyUserCodeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifies = append(r.verifies, ev)
}

func (r *recorder) OnMessageReceived(msg *types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) OnMessageDelivered(msg *types.Message, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, types.MessageDeliveredEvent{Message: msg, Err: err})
}

func (r *recorder) OnDeliveryReceived(d types.Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *recorder) OnReachabilityChanged(s types.ReachabilityStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reach = append(r.reach, s)
}

func (r *recorder) States() []types.StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.StateChange(nil), r.states...)
}

func (r *recorder) Registrations() []types.RegistrationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.RegistrationEvent(nil), r.regs...)
}

func (r *recorder) Codes() []types.VerificationCodeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.VerificationCodeEvent(nil), r.codes...)
}

func (r *recorder) Verifies() []types.VerifyUserCodeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.VerifyUserCodeEvent(nil), r.verifies...)
}

func (r *recorder) Messages() []*types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Message(nil), r.messages...)
}

func (r *recorder) Delivered() []types.MessageDeliveredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.MessageDeliveredEvent(nil), r.delivered...)
}

func (r *recorder) Deliveries() []types.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Delivery(nil), r.deliveries...)
}

func (r *recorder) Reach() []types.ReachabilityStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ReachabilityStatus(nil), r.reach...)
}

// ============================================================================
//                              harness
// ============================================================================

type harness struct {
	t     *testing.T
	clock *clock.Mock
	tr    *faketransport.Transport
	src   *reachability.ManualSource
	store *identity.Store
	m     *Manager
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithConfig(t, config.NewConfig())
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	mock := clock.NewMock()
	tr := faketransport.New()
	src := reachability.NewManualSource(types.Unreachable)
	mon := reachability.NewMonitor(src, clock.New(), 50*time.Millisecond)
	require.NoError(t, mon.Start(context.Background()))

	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	store, err := identity.NewStore(eng)
	require.NoError(t, err)

	m, err := New(Options{
		Config:    cfg,
		Transport: tr,
		Monitor:   mon,
		Identity:  store,
		Clock:     mock,
		Rand:      rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, m.AddObserver(rec))
	require.NoError(t, m.Start(context.Background()))

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
		_ = mon.Stop()
		_ = eng.Close()
	})
	return &harness{t: t, clock: mock, tr: tr, src: src, store: store, m: m, rec: rec}
}

func (h *harness) eventually(cond func() bool, msg string) {
	h.t.Helper()
	require.Eventually(h.t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

// settle 等待进行中的连接尝试结束并送达全部事件
func (h *harness) settle() {
	h.t.Helper()
	h.eventually(func() bool {
		busy := true
		_ = h.m.queue.Call(func() { busy = h.m.attempt != nil })
		return !busy
	}, "connect attempt did not finish")
	h.m.Flush()
}

func (h *harness) waitState(want types.ConnectionState) {
	h.t.Helper()
	h.eventually(func() bool { return h.m.State() == want }, "waiting for state "+want.String())
	h.m.Flush()
}

func (h *harness) setReachable(reachable bool) {
	if reachable {
		h.src.Update(wifi)
	} else {
		h.src.Update(types.Unreachable)
	}
}

func (h *harness) connect() {
	h.t.Helper()
	h.setReachable(true)
	h.waitState(types.Connected)
}

func (h *harness) registerApp() {
	h.t.Helper()
	require.NoError(h.t, h.m.RegisterApplication(testApp, testCreds))
	h.eventually(h.m.IsRegistered, "application registration")
	h.m.Flush()
}

func (h *harness) registerUser(userID string, channels ...string) {
	h.t.Helper()
	require.NoError(h.t, h.m.RegisterUser(userID, UserOptions{Channels: channels}))
	h.eventually(func() bool { return h.m.UserID() == userID }, "user registration")
	h.m.Flush()
}

// drop 模拟服务器断线，等待进入断开状态
func (h *harness) drop(err error) {
	h.t.Helper()
	h.tr.Drop(err)
	h.eventually(func() bool {
		s := h.m.State()
		return s == types.Disconnected || s == types.DisconnectedError
	}, "waiting for disconnect")
	h.m.Flush()
}

// rejectAuth 握手始终被认证拒绝
func rejectAuth(context.Context, types.Hello) error {
	return types.ErrAuthRejected.WithOp("hello", nil)
}
