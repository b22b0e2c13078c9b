package verification

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("protocol/verification")

// Registry 验证会话表
type Registry struct {
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[string]*types.VerificationSession
	nextGen  uint64
}

// New 创建会话表
func New(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		clock:    clk,
		sessions: make(map[string]*types.VerificationSession),
	}
}

// Begin 为 userID 创建新的 Pending 会话，取代已有会话
func (r *Registry) Begin(userID, media string) types.VerificationSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextGen++
	if old, ok := r.sessions[userID]; ok && old.IsActive() {
		logger.Debug("验证会话被新请求取代",
			"user", log.TruncateID(userID, 6),
			"old_generation", old.Generation)
	}
	s := &types.VerificationSession{
		UserID:         userID,
		RequestedMedia: media,
		Outcome:        types.VerificationPending,
		Generation:     r.nextGen,
	}
	r.sessions[userID] = s
	return *s
}

// MarkSent 服务器确认已发送验证码
//
// 会话已被取代或不处于 Pending 时返回 false。
func (r *Registry) MarkSent(userID string, gen uint64) (types.VerificationSession, bool) {
	return r.advance(userID, gen, types.VerificationPending, func(s *types.VerificationSession) {
		s.Outcome = types.VerificationSent
		s.CodeSentAt = r.clock.Now()
	})
}

// MarkFailed 验证码请求失败，Pending → Failed
func (r *Registry) MarkFailed(userID string, gen uint64) (types.VerificationSession, bool) {
	return r.advance(userID, gen, types.VerificationPending, func(s *types.VerificationSession) {
		s.Outcome = types.VerificationFailed
	})
}

// Complete 校验结果，Sent → Verified 或 Sent → Failed
func (r *Registry) Complete(userID string, gen uint64, verified bool) (types.VerificationSession, bool) {
	return r.advance(userID, gen, types.VerificationSent, func(s *types.VerificationSession) {
		if verified {
			s.Outcome = types.VerificationVerified
		} else {
			s.Outcome = types.VerificationFailed
		}
	})
}

func (r *Registry) advance(userID string, gen uint64, from types.VerificationOutcome, fn func(*types.VerificationSession)) (types.VerificationSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok || s.Generation != gen || s.Outcome != from {
		return types.VerificationSession{}, false
	}
	fn(s)
	return *s, true
}

// RequireSent 返回 userID 处于 Sent 的会话
//
// 不存在、仍为 Pending 或已终结时返回 ErrNoActiveSession。
func (r *Registry) RequireSent(userID string) (types.VerificationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return types.VerificationSession{}, types.ErrNoActiveSession.WithOp("verify_user_code",
			fmt.Errorf("no session for user"))
	}
	if s.Outcome != types.VerificationSent {
		return types.VerificationSession{}, types.ErrNoActiveSession.WithOp("verify_user_code",
			fmt.Errorf("session is %s", s.Outcome))
	}
	return *s, nil
}

// Get 返回会话快照
func (r *Registry) Get(userID string) (types.VerificationSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return types.VerificationSession{}, false
	}
	return *s, true
}

// InvalidateExcept 丢弃除 userID 之外的所有会话，返回丢弃数量
func (r *Registry) InvalidateExcept(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id := range r.sessions {
		if id == userID {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	if n > 0 {
		logger.Debug("已丢弃其他用户的验证会话", "count", n)
	}
	return n
}

// InvalidateAll 丢弃全部会话
func (r *Registry) InvalidateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	r.sessions = make(map[string]*types.VerificationSession)
	return n
}

// Len 会话数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
