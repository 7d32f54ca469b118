// Package resilience provides the small backpressure primitives the cache
// builds on: a token-bucket rate limiter, a bounded-wait concurrency cap
// and a hard per-operation timeout.
//
// Each primitive serves one place in the cache:
//
//   - RateLimiter paces background warming so refresh traffic honors the
//     upstream rate budget.
//
//   - Bulkhead caps aggregate in-flight upstream requests from the
//     knowledge client.
//
//   - ExecuteWithTimeout bounds every deduplicated fetch so callers queued
//     behind a hung upstream are released in bounded time.
//
// All three fail fast with sentinel errors (ErrRateLimitExceeded,
// ErrBulkheadFull, ErrTimeout) rather than retrying; the cache never
// retries internally and surfaces these to the caller unchanged.
package resilience
