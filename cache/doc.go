// Package cache is the shared external-knowledge cache: a bounded,
// TTL-governed store of upstream knowledge results behind a single
// read-through Manager.
//
// The Manager composes four pieces. Normalize canonicalizes topics so
// spelling variants share one entry. A Store (in-memory by default, Redis
// optional) holds entries under entry-count and byte bounds, protecting
// frequently accessed entries from eviction. Misses route through dedup so
// concurrent callers for one key share a single upstream fetch. A warm
// scheduler refreshes registered topics in the background without ever
// displacing live entries, and a health monitor grades hit rate, fetch
// latency and error rate over a rolling window.
//
// Construct one Manager per process and share it:
//
//	mgr, err := cache.New(cache.DefaultConfig(), fetcher)
//	if err != nil {
//		return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	res, err := mgr.Get(ctx, "React hooks best practices",
//		cache.Qualifiers{Domain: "typescript"})
//
// Upstream failures surface to callers unchanged and are never cached;
// storage failures degrade to fetched-but-not-cached.
package cache
