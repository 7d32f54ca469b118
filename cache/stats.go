package cache

import (
	"time"

	"github.com/wtthornton/TappMCP-sub003/dedup"
	"github.com/wtthornton/TappMCP-sub003/warm"
)

// Stats is a point-in-time snapshot of manager activity.
type Stats struct {
	// Hits counts demand lookups served from the store.
	Hits int64

	// Misses counts demand lookups that led an upstream fetch.
	Misses int64

	// Joined counts demand lookups that attached to a fetch already in
	// flight. A join is neither a hit nor a second miss.
	Joined int64

	// Lookups is Hits + Misses + Joined.
	Lookups int64

	// HitRate is Hits / (Hits + Misses), zero when no lookups completed.
	HitRate float64

	// Store, Dedup and Warm are component snapshots.
	Store StoreStats
	Dedup dedup.Stats
	Warm  warm.Stats

	// Domains holds per-domain demand counters, keyed by domain slug.
	Domains map[string]DomainStats

	// Uptime is the time since Start, zero before it.
	Uptime time.Duration
}

// DomainStats holds demand counters for one qualifier domain.
type DomainStats struct {
	Hits   int64
	Misses int64
	Joined int64
}
