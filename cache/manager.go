package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"

	"github.com/wtthornton/TappMCP-sub003/dedup"
	"github.com/wtthornton/TappMCP-sub003/health"
	"github.com/wtthornton/TappMCP-sub003/knowledge"
	"github.com/wtthornton/TappMCP-sub003/observe"
	"github.com/wtthornton/TappMCP-sub003/resilience"
	"github.com/wtthornton/TappMCP-sub003/warm"
)

// Manager is the unified cache facade shared by every consumer. It composes
// the bounded store, request deduplication, background warming and health
// monitoring behind one read-through surface.
//
// Construct one Manager per process and inject it; separate per-consumer
// instances fragment the cache and defeat cross-consumer deduplication.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Errors: upstream failures surface unchanged to every waiting caller;
//   storage failures degrade to fetched-but-not-cached and are never
//   returned from Get.
// - Retries: none. Rate-limit and timeout errors are surfaced, not retried;
//   the caller decides whether the stale-or-nothing tradeoff is worth it.
type Manager struct {
	cfg     Config
	policy  Policy
	store   Store
	fetcher knowledge.Fetcher
	flights *dedup.Deduplicator
	warmer  *warm.Warmer
	monitor *health.Monitor

	logger     observe.Logger
	loggerSet  bool
	metrics    observe.Metrics
	metricsSet bool
	observer   observe.Observer
	usageReg   metric.Registration

	hits   atomic.Int64
	misses atomic.Int64
	joined atomic.Int64

	domMu   sync.RWMutex
	domains map[string]*domainCounters

	statsMu   sync.Mutex
	lastStore StoreStats

	sched         *cron.Cron
	started       atomic.Bool
	closed        atomic.Bool
	startedAtNano atomic.Int64
}

type domainCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
	joined atomic.Int64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithStore replaces the default in-memory store, e.g. with a RedisStore.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithObserver wires logging and metrics from an observe.Observer.
func WithObserver(obs observe.Observer) Option {
	return func(m *Manager) { m.observer = obs }
}

// WithLogger sets the logger. Overrides the observer's logger.
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) {
		m.logger = l
		m.loggerSet = true
	}
}

// WithMetrics sets the metrics recorder. Overrides the observer's meter.
func WithMetrics(mt observe.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
		m.metricsSet = true
	}
}

// GetOption customizes a single lookup.
type GetOption func(*getSettings)

type getSettings struct {
	ttl time.Duration
}

// WithTTL requests a specific TTL for the entry stored by this lookup.
// The policy clamps it to MaxTTL.
func WithTTL(d time.Duration) GetOption {
	return func(s *getSettings) { s.ttl = d }
}

// New creates a Manager around the given upstream fetcher.
func New(cfg Config, fetcher knowledge.Fetcher, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	m := &Manager{
		cfg:     cfg,
		policy:  Policy{DefaultTTL: cfg.DefaultTTL, MaxTTL: cfg.MaxTTL},
		fetcher: fetcher,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		domains: make(map[string]*domainCounters),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.observer != nil {
		if !m.loggerSet {
			m.logger = m.observer.Logger()
		}
		if !m.metricsSet {
			mt, err := observe.NewMetrics(m.observer.Meter())
			if err != nil {
				return nil, err
			}
			m.metrics = mt
		}
	}
	if m.store == nil {
		m.store = NewMemoryStore(StoreConfig{
			MaxEntries:         cfg.MaxEntries,
			MaxBytes:           cfg.MaxBytes,
			HotAccessThreshold: cfg.HotAccessThreshold,
		})
	}

	m.flights = dedup.New(dedup.Config{
		Timeout: cfg.FetchTimeout,
		Logger:  m.logger,
	})

	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:    cfg.WarmRate,
		Burst:   cfg.WarmBurst,
		MaxWait: warmWaitBudget(cfg),
	})
	warmer, err := warm.New(warm.Config{
		Key:       func(t warm.Topic) string { return Normalize(t.Topic, Qualifiers{Domain: t.Domain}) },
		Fresh:     m.store.Fresh,
		HasRoom:   m.hasRoom,
		Fetch:     m.warmFetch,
		Limiter:   limiter,
		BatchSize: cfg.WarmBatchSize,
		Timeout:   cfg.WarmTimeout,
		Logger:    m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.warmer = warmer

	monitor, err := health.NewMonitor(m.healthCounters, cfg.Health, health.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.monitor = monitor

	reg, err := m.metrics.RegisterUsage(
		func() int64 { return m.store.Stats().Entries },
		func() int64 { return m.store.Stats().SizeBytes },
	)
	if err != nil {
		return nil, err
	}
	m.usageReg = reg

	m.logger = m.logger.WithComponent("cache")
	return m, nil
}

// Get returns the knowledge for topic, fetching through the deduplicator on
// a miss. Concurrent misses for the same key share exactly one upstream
// fetch; joiners receive the identical result or error.
func (m *Manager) Get(ctx context.Context, topic string, q Qualifiers, opts ...GetOption) (*knowledge.Result, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	var settings getSettings
	for _, opt := range opts {
		opt(&settings)
	}

	key := Normalize(topic, q)
	meta := observe.FetchMeta{
		Key:      key,
		Topic:    topic,
		Domain:   slug(q.Domain),
		Priority: slug(q.Priority),
	}

	if res, ok := m.store.Get(ctx, key); ok {
		m.hits.Add(1)
		m.domainCounter(meta.Domain, observe.OutcomeHit)
		m.metrics.RecordLookup(ctx, meta, observe.OutcomeHit)
		return res, nil
	}

	ttl := m.policy.EffectiveTTL(settings.ttl)
	res, led, err := m.flights.Fetch(ctx, key,
		func(fctx context.Context) (*knowledge.Result, error) {
			return m.fetcher.Fetch(fctx, topic)
		},
		dedup.WithSink(m.demandSink(ttl)),
	)

	outcome := observe.OutcomeJoin
	if led {
		outcome = observe.OutcomeMiss
		m.misses.Add(1)
	} else {
		m.joined.Add(1)
	}
	m.domainCounter(meta.Domain, outcome)
	m.metrics.RecordLookup(ctx, meta, outcome)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// Warm registers topics for background refresh. Registration replaces any
// earlier entry for the same key; it never fetches by itself.
func (m *Manager) Warm(topics ...warm.Topic) {
	if m.closed.Load() {
		return
	}
	m.warmer.Schedule(topics...)
}

// WarmNow runs one warming cycle immediately. The scheduled cadence is
// unaffected.
func (m *Manager) WarmNow(ctx context.Context) warm.CycleStats {
	if m.closed.Load() {
		return warm.CycleStats{}
	}
	return m.runWarmCycle(ctx)
}

// Invalidate removes the entry for topic. It reports whether a live entry
// was removed. An in-flight fetch for the key is unaffected and will store
// its result on completion.
func (m *Manager) Invalidate(ctx context.Context, topic string, q Qualifiers) bool {
	return m.store.Invalidate(ctx, Normalize(topic, q))
}

// InvalidateAll clears the store and returns the number of entries removed.
func (m *Manager) InvalidateAll(ctx context.Context) int {
	n := m.store.InvalidateAll(ctx)
	if n > 0 {
		m.logger.Info(ctx, "cache cleared", observe.Field{Key: "entries", Value: n})
	}
	return n
}

// Health returns the monitor's latest report.
func (m *Manager) Health() health.Report {
	return m.monitor.Report()
}

// Stats returns a snapshot of manager, store, dedup and warm counters.
func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()
	joined := m.joined.Load()

	s := Stats{
		Hits:    hits,
		Misses:  misses,
		Joined:  joined,
		Lookups: hits + misses + joined,
		Store:   m.store.Stats(),
		Dedup:   m.flights.Stats(),
		Warm:    m.warmer.Stats(),
		Domains: m.domainSnapshot(),
	}
	if hits+misses > 0 {
		s.HitRate = float64(hits) / float64(hits+misses)
	}
	if startedAt := m.startedAtNano.Load(); startedAt > 0 {
		s.Uptime = time.Since(time.Unix(0, startedAt))
	}
	return s
}

// demandSink stores a fetched result with eviction allowed.
func (m *Manager) demandSink(ttl time.Duration) dedup.SinkFunc {
	return func(ctx context.Context, key string, res *knowledge.Result) error {
		return m.store.Put(ctx, key, res, ttl)
	}
}

// warmSink stores a fetched result only if room exists. Warming never
// displaces live entries.
func (m *Manager) warmSink() dedup.SinkFunc {
	ttl := m.policy.EffectiveTTL(0)
	return func(ctx context.Context, key string, res *knowledge.Result) error {
		return m.store.PutIfRoom(ctx, key, res, ttl)
	}
}

// warmFetch routes a warming fetch through the deduplicator so a warm task
// and a demand caller for the same key share one flight.
func (m *Manager) warmFetch(ctx context.Context, key string, t warm.Topic) error {
	_, _, err := m.flights.Fetch(ctx, key,
		func(fctx context.Context) (*knowledge.Result, error) {
			return m.fetcher.Fetch(fctx, t.Topic)
		},
		dedup.WithTimeout(m.cfg.WarmTimeout),
		dedup.WithSink(m.warmSink()),
	)
	return err
}

// hasRoom is the warmer's coarse capacity probe.
func (m *Manager) hasRoom() bool {
	s := m.store.Stats()
	if s.MaxEntries > 0 && s.Entries >= s.MaxEntries {
		return false
	}
	if s.MaxBytes > 0 && s.SizeBytes >= s.MaxBytes {
		return false
	}
	return true
}

// healthCounters assembles the cumulative counters the monitor samples.
func (m *Manager) healthCounters(context.Context) health.Counters {
	ds := m.flights.Stats()
	ss := m.store.Stats()
	return health.Counters{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Fetches:     ds.Fetches,
		FetchErrors: ds.Errors,
		Timeouts:    ds.Timeouts,
		FetchTime:   ds.FetchTime,
		Entries:     ss.Entries,
		SizeBytes:   ss.SizeBytes,
		MaxEntries:  ss.MaxEntries,
		MaxBytes:    ss.MaxBytes,
	}
}

func (m *Manager) domainCounter(domain, outcome string) {
	if domain == "" {
		return
	}
	m.domMu.RLock()
	c, ok := m.domains[domain]
	m.domMu.RUnlock()
	if !ok {
		m.domMu.Lock()
		if c, ok = m.domains[domain]; !ok {
			c = &domainCounters{}
			m.domains[domain] = c
		}
		m.domMu.Unlock()
	}
	switch outcome {
	case observe.OutcomeHit:
		c.hits.Add(1)
	case observe.OutcomeMiss:
		c.misses.Add(1)
	case observe.OutcomeJoin:
		c.joined.Add(1)
	}
}

func (m *Manager) domainSnapshot() map[string]DomainStats {
	m.domMu.RLock()
	defer m.domMu.RUnlock()

	out := make(map[string]DomainStats, len(m.domains))
	for name, c := range m.domains {
		out[name] = DomainStats{
			Hits:   c.hits.Load(),
			Misses: c.misses.Load(),
			Joined: c.joined.Load(),
		}
	}
	return out
}

// warmWaitBudget sizes the limiter's maximum wait so a full batch can drain
// at the configured rate.
func warmWaitBudget(cfg Config) time.Duration {
	if cfg.WarmRate <= 0 {
		return time.Second
	}
	budget := time.Duration(float64(cfg.WarmBatchSize) / cfg.WarmRate * float64(time.Second))
	if budget < time.Second {
		budget = time.Second
	}
	return budget
}
