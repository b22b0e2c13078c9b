package connection

import (
	"math"
	"math/rand"
	"time"

	"github.com/dep2p/go-pushclient/config"
)

// NextBackoffDelay 返回第 attempt 次重试（从 1 开始）的延迟
//
// 延迟为 min(Initial * Multiplier^(attempt-1), Max)，
// 再乘以 [1-Jitter, 1+Jitter) 内的随机因子；rng 为 nil 时不抖动。
func NextBackoffDelay(cfg config.BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	initial := float64(cfg.Initial)
	if initial <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	mult := cfg.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}

	delay := initial * math.Pow(mult, float64(attempt-1))
	if maxDelay := float64(cfg.Max); maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	if cfg.Jitter > 0 && rng != nil {
		delay *= 1 - cfg.Jitter + 2*cfg.Jitter*rng.Float64()
	}
	return time.Duration(delay)
}

// Backoff 有状态的退避计数器
//
// 非并发安全，由会话 actor 独占使用。
type Backoff struct {
	cfg     config.BackoffConfig
	rng     *rand.Rand
	attempt int
}

// NewBackoff 创建退避计数器，rng 为 nil 时关闭抖动
func NewBackoff(cfg config.BackoffConfig, rng *rand.Rand) *Backoff {
	return &Backoff{cfg: cfg, rng: rng}
}

// Next 递增尝试次数并返回下一次延迟
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return NextBackoffDelay(b.cfg, b.attempt, b.rng)
}

// Reset 回到初始延迟，每次 Connected 后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 返回已调度的重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
