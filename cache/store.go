package cache

import (
	"context"
	"time"

	"github.com/wtthornton/TappMCP-sub003/knowledge"
)

// Store holds fetched knowledge entries under canonical keys.
//
// Contract:
// - Keys: callers pass keys produced by Normalize; ValidateKey guards the rest.
// - Expiry: expired entries are never returned; they are reclaimed lazily on
//   access and in bulk by SweepExpired.
// - Concurrency: implementations must be safe for concurrent use.
// - Context: honored where the backend performs I/O; the in-memory store
//   ignores it.
type Store interface {
	// Get returns the value for key, or false on absent or expired entries.
	// A hit updates the entry's access ranking.
	Get(ctx context.Context, key string) (*knowledge.Result, bool)

	// Put stores value under key for ttl, evicting as needed to respect
	// capacity. A value larger than total capacity returns ErrValueTooLarge.
	Put(ctx context.Context, key string, value *knowledge.Result, ttl time.Duration) error

	// PutIfRoom stores value only if capacity allows without evicting live
	// entries; otherwise it returns ErrNoRoom. Expired entries may be
	// reclaimed to make room.
	PutIfRoom(ctx context.Context, key string, value *knowledge.Result, ttl time.Duration) error

	// Fresh reports whether key is present and unexpired without updating
	// its access ranking.
	Fresh(ctx context.Context, key string) bool

	// Invalidate removes key and reports whether a live entry was removed.
	Invalidate(ctx context.Context, key string) bool

	// InvalidateAll removes every entry and returns the number removed.
	InvalidateAll(ctx context.Context) int

	// SweepExpired removes expired entries and returns the number removed.
	SweepExpired(ctx context.Context) int

	// Stats returns a snapshot of store counters.
	Stats() StoreStats
}

// StoreStats is a point-in-time snapshot of store state and counters.
type StoreStats struct {
	// Entries is the number of resident entries.
	Entries int64

	// SizeBytes is the approximate bytes held by resident entries.
	SizeBytes int64

	// MaxEntries and MaxBytes are the configured capacity bounds.
	// Zero means the bound does not apply to this backend.
	MaxEntries int64
	MaxBytes   int64

	// Evictions counts live entries displaced to make room.
	Evictions int64

	// Expired counts entries reclaimed after passing their expiry.
	Expired int64

	// Rejected counts writes refused for lack of capacity.
	Rejected int64
}
