// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. Consumers wire the observer into the cache manager
// or wrap an upstream fetcher with knowledge.Instrument.
package observe
