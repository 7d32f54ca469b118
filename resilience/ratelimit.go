package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the sustained number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the bucket capacity, i.e. how many operations may proceed
	// back to back after an idle period.
	// Default: 10
	Burst int

	// MaxWait caps how long Wait blocks for a token before giving up.
	// Default: 1s
	MaxWait time.Duration
}

// RateLimiter paces operations against a token bucket.
//
// The warmer shares one limiter across all its batches so background
// refresh as a whole, not each batch, honors the upstream rate budget.
type RateLimiter struct {
	rate    float64
	burst   float64
	maxWait time.Duration

	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		rate:     config.Rate,
		burst:    float64(config.Burst),
		maxWait:  config.MaxWait,
		tokens:   float64(config.Burst),
		refilled: time.Now(),
	}
}

// Wait blocks until a token is available, the shortfall wait (capped at
// MaxWait) elapses without one, or ctx is done. A capped wait that still
// comes up empty returns ErrRateLimitExceeded.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	taken, shortfall := rl.take()
	if taken {
		return nil
	}

	wait := time.Duration(shortfall / rl.rate * float64(time.Second))
	if wait > rl.maxWait {
		wait = rl.maxWait
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if taken, _ := rl.take(); taken {
			return nil
		}
		return ErrRateLimitExceeded
	}
}

// take removes one token when available; otherwise it reports how many
// tokens short the bucket is.
func (rl *RateLimiter) take() (bool, float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.refilled).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.refilled = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	return false, 1 - rl.tokens
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.refilled).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.refilled = now
	return rl.tokens
}
