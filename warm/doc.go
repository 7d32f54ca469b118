// Package warm refreshes registered cache topics ahead of demand.
//
// A Warmer holds a schedule of topics, each with a priority tier. Each
// cycle walks the tiers from critical to low and refreshes stale topics in
// bounded concurrent batches, pacing every upstream fetch through a shared
// rate limiter. Warming is strictly additive: a topic is skipped when its
// entry is still fresh or when the store has no room, so background refresh
// never evicts what demand traffic earned.
//
// The Warmer reaches the cache only through injected closures and routes
// fetches through the request deduplicator, so a warm task and a demand
// caller for the same key share a single upstream call.
package warm
