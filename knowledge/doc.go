// Package knowledge defines the boundary to the upstream knowledge service.
//
// Result is the unit of cached data and Fetcher is the single capability
// the cache consumes; anything that can produce a Result for a topic can
// sit behind it. The cache never inspects Content and never retries a
// failed fetch, so implementations surface classified errors and let the
// caller decide how to react.
//
// Failures are reported as *UpstreamError and matched through the package
// sentinels:
//
//	_, err := fetcher.Fetch(ctx, topic)
//	if errors.Is(err, knowledge.ErrRateLimited) {
//		var ue *knowledge.UpstreamError
//		if errors.As(err, &ue) && ue.RetryAfter > 0 {
//			// back off for ue.RetryAfter before asking again
//		}
//	}
//
// Client implements Fetcher over HTTP and Instrument wraps any Fetcher
// with tracing, metrics and failure logging.
package knowledge
