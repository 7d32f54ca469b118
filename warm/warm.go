package warm

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wtthornton/TappMCP-sub003/observe"
	"github.com/wtthornton/TappMCP-sub003/resilience"
)

// Priority orders topics within a warming cycle. Higher tiers refresh first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the tier name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// tiers lists priorities in processing order.
var tiers = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Topic is a registered warming target.
type Topic struct {
	// Topic is the raw topic string, as a consumer would pass to a lookup.
	Topic string

	// Domain narrows the cache key, matching the lookup qualifier.
	Domain string

	// Priority picks the refresh tier. Scheduling only; it does not alter
	// the cache key.
	Priority Priority
}

// Config wires a Warmer to its cache. The closures are injected by the
// manager so the warmer never holds a reference to the store or the
// deduplicator.
type Config struct {
	// Key derives the canonical cache key for a topic. Required.
	Key func(t Topic) string

	// Fresh reports whether the key is present and unexpired, without
	// touching access ranking. Required.
	Fresh func(ctx context.Context, key string) bool

	// HasRoom is a coarse probe for free capacity. A full store skips
	// fetches instead of spending rate budget on results it cannot keep.
	// Required.
	HasRoom func() bool

	// Fetch refreshes one topic through the deduplicator with the additive
	// sink. Required.
	Fetch func(ctx context.Context, key string, t Topic) error

	// Limiter paces upstream fetches. Optional; nil disables pacing.
	Limiter *resilience.RateLimiter

	// BatchSize caps how many topics fetch concurrently.
	// Default: 8
	BatchSize int

	// Timeout bounds one warming fetch, applied per topic.
	// Default: 3s
	Timeout time.Duration

	// Logger for cycle events. Optional.
	Logger observe.Logger
}

// CycleStats summarizes one warming cycle.
type CycleStats struct {
	// Selected counts topics that went to fetch.
	Selected int

	// Warmed counts fetches that completed.
	Warmed int

	// SkippedFresh counts topics skipped because the entry was unexpired.
	SkippedFresh int

	// SkippedFull counts topics skipped because the store had no room.
	// Warming never displaces live entries.
	SkippedFull int

	// Failures counts fetches that errored. Failures never abort a cycle.
	Failures int

	// Duration is the wall time of the cycle.
	Duration time.Duration
}

// Stats is a snapshot of cumulative warmer activity.
type Stats struct {
	Cycles       int64
	Warmed       int64
	SkippedFresh int64
	SkippedFull  int64
	Failures     int64

	// Scheduled is the number of currently registered topics.
	Scheduled int

	// LastCycleAt is the start time of the most recent cycle.
	LastCycleAt time.Time
}

// Warmer refreshes registered topics ahead of demand. Cycles walk priority
// tiers from critical to low, fetch in bounded concurrent batches, and pace
// every fetch through the rate limiter so warming cannot starve demand
// traffic of upstream budget.
type Warmer struct {
	cfg Config

	mu     sync.Mutex
	topics map[string]Topic // by cache key

	cycles       atomic.Int64
	warmed       atomic.Int64
	skippedFresh atomic.Int64
	skippedFull  atomic.Int64
	failures     atomic.Int64
	lastCycleNs  atomic.Int64

	logger observe.Logger
}

// New creates a Warmer. The Key, Fresh, HasRoom and Fetch closures are
// required.
func New(cfg Config) (*Warmer, error) {
	if cfg.Key == nil {
		return nil, ErrNilKeyFunc
	}
	if cfg.Fresh == nil {
		return nil, ErrNilFreshFunc
	}
	if cfg.HasRoom == nil {
		return nil, ErrNilRoomFunc
	}
	if cfg.Fetch == nil {
		return nil, ErrNilFetchFunc
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Warmer{
		cfg:    cfg,
		topics: make(map[string]Topic),
		logger: logger.WithComponent("warm"),
	}, nil
}

// Schedule registers topics for warming. A topic with the same key replaces
// the earlier registration, so rescheduling updates its priority.
func (w *Warmer) Schedule(topics ...Topic) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range topics {
		w.topics[w.cfg.Key(t)] = t
	}
}

// Forget removes topics from the schedule. Cached entries are untouched.
func (w *Warmer) Forget(topics ...Topic) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range topics {
		delete(w.topics, w.cfg.Key(t))
	}
}

// Topics returns the registered topics ordered as a cycle would process
// them: priority tier first, then topic name.
func (w *Warmer) Topics() []Topic {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Topic, 0, len(w.topics))
	for _, t := range w.topics {
		out = append(out, t)
	}
	sortTopics(out)
	return out
}

// RunCycle refreshes stale registered topics once. It walks tiers from
// critical to low; within a tier, topics fetch in batches of BatchSize.
// Failures are counted and logged, never fatal. Cancellation stops the
// cycle between batches.
func (w *Warmer) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	w.cycles.Add(1)
	w.lastCycleNs.Store(start.UnixNano())

	var cs CycleStats
	snapshot := w.Topics()

	for _, tier := range tiers {
		if ctx.Err() != nil {
			break
		}
		batch := make([]Topic, 0, w.cfg.BatchSize)
		for _, t := range snapshot {
			if t.Priority != tier {
				continue
			}
			batch = append(batch, t)
			if len(batch) == w.cfg.BatchSize {
				w.runBatch(ctx, batch, &cs)
				batch = batch[:0]
				if ctx.Err() != nil {
					break
				}
			}
		}
		if len(batch) > 0 && ctx.Err() == nil {
			w.runBatch(ctx, batch, &cs)
		}
	}

	cs.Duration = time.Since(start)
	w.warmed.Add(int64(cs.Warmed))
	w.skippedFresh.Add(int64(cs.SkippedFresh))
	w.skippedFull.Add(int64(cs.SkippedFull))
	w.failures.Add(int64(cs.Failures))
	return cs
}

// runBatch processes one batch concurrently and folds results into cs.
func (w *Warmer) runBatch(ctx context.Context, batch []Topic, cs *CycleStats) {
	var warmed, skippedFresh, skippedFull, failures, selected atomic.Int64

	g := new(errgroup.Group)
	for _, t := range batch {
		t := t // per-iteration copy; required for pre-1.22 loop semantics
		g.Go(func() error {
			key := w.cfg.Key(t)
			if w.cfg.Fresh(ctx, key) {
				skippedFresh.Add(1)
				return nil
			}
			if !w.cfg.HasRoom() {
				skippedFull.Add(1)
				return nil
			}
			if w.cfg.Limiter != nil {
				if err := w.cfg.Limiter.Wait(ctx); err != nil {
					failures.Add(1)
					w.logger.Debug(ctx, "warm fetch skipped by rate budget",
						observe.Field{Key: "key", Value: key},
						observe.Field{Key: "error", Value: err.Error()})
					return nil
				}
			}

			selected.Add(1)
			fctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
			defer cancel()
			if err := w.cfg.Fetch(fctx, key, t); err != nil {
				failures.Add(1)
				w.logger.Warn(ctx, "warm fetch failed",
					observe.Field{Key: "key", Value: key},
					observe.Field{Key: "topic", Value: t.Topic},
					observe.Field{Key: "priority", Value: t.Priority.String()},
					observe.Field{Key: "error", Value: err.Error()})
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	cs.Selected += int(selected.Load())
	cs.Warmed += int(warmed.Load())
	cs.SkippedFresh += int(skippedFresh.Load())
	cs.SkippedFull += int(skippedFull.Load())
	cs.Failures += int(failures.Load())
}

// Stats returns cumulative warmer counters.
func (w *Warmer) Stats() Stats {
	w.mu.Lock()
	scheduled := len(w.topics)
	w.mu.Unlock()

	s := Stats{
		Cycles:       w.cycles.Load(),
		Warmed:       w.warmed.Load(),
		SkippedFresh: w.skippedFresh.Load(),
		SkippedFull:  w.skippedFull.Load(),
		Failures:     w.failures.Load(),
		Scheduled:    scheduled,
	}
	if ns := w.lastCycleNs.Load(); ns > 0 {
		s.LastCycleAt = time.Unix(0, ns)
	}
	return s
}

// sortTopics orders by tier (critical first), then topic, then domain for
// a stable cycle order.
func sortTopics(topics []Topic) {
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Priority != topics[j].Priority {
			return topics[i].Priority > topics[j].Priority
		}
		if topics[i].Topic != topics[j].Topic {
			return topics[i].Topic < topics[j].Topic
		}
		return topics[i].Domain < topics[j].Domain
	})
}
