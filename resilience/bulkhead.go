package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig configures the concurrency cap.
type BulkheadConfig struct {
	// MaxConcurrent is the number of operations allowed in flight at once.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long Acquire may block for a slot once the cap is
	// reached.
	// Default: 0 (reject immediately)
	MaxWait time.Duration
}

// Bulkhead caps the number of concurrent operations.
//
// The upstream client uses one to bound aggregate in-flight requests;
// per-key deduplication already guarantees at most one fetch per key, so
// the bulkhead only matters when many distinct keys miss at once.
type Bulkhead struct {
	sem     chan struct{}
	maxWait time.Duration

	active   atomic.Int64
	peak     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead with all slots free.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		sem:     make(chan struct{}, config.MaxConcurrent),
		maxWait: config.MaxWait,
	}
}

// Acquire claims a slot, blocking up to MaxWait for one. It returns
// ErrBulkheadFull when no slot frees up in time and ctx.Err() when the
// context ends first. Every successful Acquire must be paired with a
// Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.claimed()
		return nil
	default:
	}

	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.claimed()
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot claimed by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
		b.active.Add(-1)
	default:
	}
}

func (b *Bulkhead) claimed() {
	active := b.active.Add(1)
	for {
		peak := b.peak.Load()
		if active <= peak || b.peak.CompareAndSwap(peak, active) {
			return
		}
	}
}

// BulkheadStats is a snapshot of slot usage.
type BulkheadStats struct {
	// Active is the number of slots currently claimed.
	Active int64

	// Peak is the highest concurrent claim count observed.
	Peak int64

	// Capacity is the configured slot count.
	Capacity int64

	// Rejected counts acquires that gave up without a slot.
	Rejected int64
}

// Stats returns a snapshot of slot usage.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		Active:   b.active.Load(),
		Peak:     b.peak.Load(),
		Capacity: int64(cap(b.sem)),
		Rejected: b.rejected.Load(),
	}
}
