// Package dedup collapses concurrent fetches for the same cache key into a
// single upstream call.
//
// The Deduplicator guarantees that for any key, at most one upstream fetch
// is outstanding at a time: the first caller leads the fetch, later callers
// join it, and every caller receives the same result or error. Failed
// fetches are forgotten immediately so the next caller can retry. Every
// fetch runs under a timeout so callers queued behind a hung upstream are
// released in bounded time.
//
// Basic usage:
//
//	d := dedup.New(dedup.Config{Timeout: 5 * time.Second, Sink: writeThrough})
//	res, led, err := d.Fetch(ctx, key, func(ctx context.Context) (*knowledge.Result, error) {
//		return fetcher.Fetch(ctx, topic)
//	})
//
// led reports whether this call initiated the upstream fetch or attached to
// one already in flight, which is what separates a miss from a join in the
// cache's accounting.
package dedup
