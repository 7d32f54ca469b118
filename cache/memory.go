package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/wtthornton/TappMCP-sub003/knowledge"
)

// entryOverhead approximates per-entry bookkeeping bytes beyond the payload.
const entryOverhead = 64

// entry is a stored value with the metadata eviction ranks on.
type entry struct {
	key            string
	value          *knowledge.Result
	size           int64
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

func (e *entry) expiredAt(now time.Time) bool {
	return now.After(e.expiresAt)
}

// StoreConfig bounds a MemoryStore.
type StoreConfig struct {
	// MaxEntries is the entry-count capacity. Negative disables the bound;
	// zero takes the default.
	// Default: 1024
	MaxEntries int

	// MaxBytes is the approximate byte capacity. Negative disables the
	// bound; zero takes the default.
	// Default: 64 MiB
	MaxBytes int64

	// HotAccessThreshold is the access count at which an entry becomes hot.
	// Hot entries are evicted only when every entry is hot.
	// Default: 3
	HotAccessThreshold int64
}

// MemoryStore is the in-process Store. Capacity is bounded by both entry
// count and bytes; whichever bound is hit first drives eviction.
//
// Eviction ranking: expired entries go first, then least-recently-used among
// entries below the hot access threshold, ties falling to the oldest. When
// every entry is hot the ranking degrades to plain LRU, because capacity is
// a hard bound.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	size    int64

	maxEntries   int
	maxBytes     int64
	hotThreshold int64

	evictions int64
	expired   int64
	rejected  int64
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(cfg StoreConfig) *MemoryStore {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.HotAccessThreshold <= 0 {
		cfg.HotAccessThreshold = 3
	}
	return &MemoryStore{
		entries:      make(map[string]*list.Element),
		order:        list.New(),
		maxEntries:   cfg.MaxEntries,
		maxBytes:     cfg.MaxBytes,
		hotThreshold: cfg.HotAccessThreshold,
	}
}

// Get retrieves a value. Expired entries are reclaimed on access and
// reported as misses; hits update recency and access count.
func (s *MemoryStore) Get(_ context.Context, key string) (*knowledge.Result, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if e.expiredAt(now) {
		s.removeLocked(el, e)
		s.expired++
		return nil, false
	}

	e.lastAccessedAt = now
	e.accessCount++
	s.order.MoveToFront(el)
	return e.value, true
}

// Put stores value under key, evicting as needed to stay within capacity.
// The TTL must already be resolved by policy and positive.
func (s *MemoryStore) Put(_ context.Context, key string, value *knowledge.Result, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return ErrNilValue
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	size := entrySize(key, value)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 && size > s.maxBytes {
		s.rejected++
		return ErrValueTooLarge
	}

	// A same-key write replaces the old entry outright; replacement is not
	// an eviction.
	if el, ok := s.entries[key]; ok {
		s.removeLocked(el, el.Value.(*entry))
	}
	s.evictForLocked(size, now)
	s.insertLocked(key, value, size, ttl, now)
	return nil
}

// PutIfRoom stores value only when capacity allows without displacing live
// entries. Expired entries are reclaimed first if that alone makes room.
func (s *MemoryStore) PutIfRoom(_ context.Context, key string, value *knowledge.Result, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return ErrNilValue
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	size := entrySize(key, value)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 && size > s.maxBytes {
		s.rejected++
		return ErrValueTooLarge
	}

	prevSize := int64(0)
	prevEntries := 0
	if el, ok := s.entries[key]; ok {
		e := el.Value.(*entry)
		prevSize = e.size
		prevEntries = 1
	}
	if !s.fitsLocked(size-prevSize, 1-prevEntries) {
		s.sweepExpiredLocked(now)
		// The replaced entry may have been swept; recount it.
		prevSize, prevEntries = 0, 0
		if el, ok := s.entries[key]; ok {
			prevSize = el.Value.(*entry).size
			prevEntries = 1
		}
		if !s.fitsLocked(size-prevSize, 1-prevEntries) {
			s.rejected++
			return ErrNoRoom
		}
	}

	if el, ok := s.entries[key]; ok {
		s.removeLocked(el, el.Value.(*entry))
	}
	s.insertLocked(key, value, size, ttl, now)
	return nil
}

// Fresh reports whether key holds an unexpired entry. It never updates
// access ranking, so warming probes do not distort eviction order.
func (s *MemoryStore) Fresh(_ context.Context, key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	if e.expiredAt(now) {
		s.removeLocked(el, e)
		s.expired++
		return false
	}
	return true
}

// Invalidate removes key. It reports true only when a live entry was removed.
func (s *MemoryStore) Invalidate(_ context.Context, key string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return false
	}
	e := el.Value.(*entry)
	live := !e.expiredAt(now)
	if !live {
		s.expired++
	}
	s.removeLocked(el, e)
	return live
}

// InvalidateAll removes every entry and returns the number removed.
func (s *MemoryStore) InvalidateAll(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.entries)
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.size = 0
	return removed
}

// SweepExpired reclaims expired entries and returns the number removed.
func (s *MemoryStore) SweepExpired(_ context.Context) int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepExpiredLocked(now)
}

// Stats returns a snapshot of store counters.
func (s *MemoryStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreStats{
		Entries:    int64(len(s.entries)),
		SizeBytes:  s.size,
		MaxEntries: int64(s.maxEntries),
		MaxBytes:   s.maxBytes,
		Evictions:  s.evictions,
		Expired:    s.expired,
		Rejected:   s.rejected,
	}
}

// fitsLocked reports whether adding the given deltas stays within capacity.
func (s *MemoryStore) fitsLocked(deltaBytes int64, deltaEntries int) bool {
	if s.maxEntries > 0 && len(s.entries)+deltaEntries > s.maxEntries {
		return false
	}
	if s.maxBytes > 0 && s.size+deltaBytes > s.maxBytes {
		return false
	}
	return true
}

// evictForLocked removes entries until an insert of size fits.
func (s *MemoryStore) evictForLocked(size int64, now time.Time) {
	for !s.fitsLocked(size, 1) {
		el := s.victimLocked(now)
		if el == nil {
			return
		}
		e := el.Value.(*entry)
		if e.expiredAt(now) {
			s.expired++
		} else {
			s.evictions++
		}
		s.removeLocked(el, e)
	}
}

// victimLocked picks the next entry to remove: any expired entry first, then
// the least-recently-used entry below the hot threshold, then the plain LRU
// tail when everything is hot.
func (s *MemoryStore) victimLocked(now time.Time) *list.Element {
	var coldest *list.Element
	for el := s.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.expiredAt(now) {
			return el
		}
		if coldest == nil && e.accessCount < s.hotThreshold {
			coldest = el
		}
	}
	if coldest != nil {
		return coldest
	}
	return s.order.Back()
}

func (s *MemoryStore) insertLocked(key string, value *knowledge.Result, size int64, ttl time.Duration, now time.Time) {
	e := &entry{
		key:            key,
		value:          value,
		size:           size,
		createdAt:      now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
	}
	s.entries[key] = s.order.PushFront(e)
	s.size += size
}

func (s *MemoryStore) removeLocked(el *list.Element, e *entry) {
	s.order.Remove(el)
	delete(s.entries, e.key)
	s.size -= e.size
}

func (s *MemoryStore) sweepExpiredLocked(now time.Time) int {
	removed := 0
	var next *list.Element
	for el := s.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if e.expiredAt(now) {
			s.removeLocked(el, e)
			s.expired++
			removed++
		}
	}
	return removed
}

// entrySize approximates the resident cost of an entry.
func entrySize(key string, value *knowledge.Result) int64 {
	return value.Size() + int64(len(key)) + entryOverhead
}

var _ Store = (*MemoryStore)(nil)
