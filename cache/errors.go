package cache

import "errors"

var (
	// ErrInvalidKey indicates the key is empty or malformed.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrKeyTooLong indicates the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrNilValue indicates a nil result was offered for storage.
	ErrNilValue = errors.New("cache: value is nil")

	// ErrInvalidTTL indicates a non-positive TTL was passed to a store.
	// TTL resolution against policy defaults happens above the store.
	ErrInvalidTTL = errors.New("cache: ttl must be positive")

	// ErrValueTooLarge indicates a single value exceeds the store's total
	// byte capacity. The caller degrades to fetched-but-not-cached.
	ErrValueTooLarge = errors.New("cache: value exceeds total capacity")

	// ErrNoRoom indicates an additive put found no free capacity.
	// Additive puts never evict live entries.
	ErrNoRoom = errors.New("cache: no room for additive put")

	// ErrInvalidDuration indicates a negative timeout or interval.
	ErrInvalidDuration = errors.New("cache: durations must not be negative")

	// ErrInvalidRate indicates a negative warm rate.
	ErrInvalidRate = errors.New("cache: warm rate must not be negative")

	// ErrNilFetcher indicates the manager was constructed without a fetcher.
	ErrNilFetcher = errors.New("cache: fetcher is required")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("cache: manager already started")

	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("cache: manager is closed")
)
