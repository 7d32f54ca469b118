package resilience

import (
	"context"
	"testing"
	"time"
)

// BenchmarkRateLimiter_Wait measures the uncontended token take.
func BenchmarkRateLimiter_Wait(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  1e9,
		Burst: 1 << 20,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Wait(ctx)
	}
}

// BenchmarkBulkhead_AcquireRelease measures slot churn without contention.
func BenchmarkBulkhead_AcquireRelease(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Acquire(ctx)
		bh.Release()
	}
}

// BenchmarkBulkhead_Parallel measures contended slot churn.
func BenchmarkBulkhead_Parallel(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 64, MaxWait: time.Second})
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := bh.Acquire(ctx); err == nil {
				bh.Release()
			}
		}
	})
}

// BenchmarkExecuteWithTimeout measures the per-fetch goroutine overhead.
func BenchmarkExecuteWithTimeout(b *testing.B) {
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ExecuteWithTimeout(ctx, time.Second, func(ctx context.Context) error {
			return nil
		})
	}
}
