package knowledge

import (
	"context"
	"time"
)

// Result is one piece of knowledge returned by the upstream service.
//
// The cache treats Content as an opaque payload; nothing in this module
// inspects or rewrites it.
type Result struct {
	// Topic is the raw topic string the result was fetched for.
	Topic string

	// Content is the knowledge payload as returned by the upstream.
	Content []byte

	// Source identifies where the upstream sourced the content (optional).
	Source string

	// FetchedAt is when the upstream call completed.
	FetchedAt time.Time
}

// resultOverhead approximates the fixed per-result bookkeeping cost.
const resultOverhead = 48

// Size returns the approximate in-memory footprint of the result in bytes.
// Used for cache capacity accounting; an estimate, not an exact measure.
func (r *Result) Size() int64 {
	if r == nil {
		return 0
	}
	return int64(len(r.Topic)+len(r.Content)+len(r.Source)) + resultOverhead
}

// Fetcher performs the actual upstream knowledge call.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: failures should be reported as *UpstreamError so callers can
//   distinguish rate limiting from transport and payload problems.
type Fetcher interface {
	// Fetch retrieves knowledge for the given raw topic.
	Fetch(ctx context.Context, topic string) (*Result, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, topic string) (*Result, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, topic string) (*Result, error) {
	return f(ctx, topic)
}
