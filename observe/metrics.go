package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup outcomes recorded by RecordLookup.
const (
	OutcomeHit  = "hit"  // Served from cache
	OutcomeMiss = "miss" // Triggered an upstream fetch
	OutcomeJoin = "join" // Attached to an in-flight fetch
)

// Eviction reasons recorded by RecordEviction.
const (
	ReasonCapacity = "capacity" // Displaced to make room
	ReasonExpired  = "expired"  // Passed its expiry
)

// Warming outcomes recorded by RecordWarm.
const (
	WarmOutcomeWarmed       = "warmed"        // Refreshed from upstream
	WarmOutcomeSkippedFresh = "skipped_fresh" // Entry still fresh
	WarmOutcomeSkippedFull  = "skipped_full"  // Store had no room
	WarmOutcomeFailed       = "failed"        // Upstream fetch failed
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one cache lookup with its outcome.
	RecordLookup(ctx context.Context, meta FetchMeta, outcome string)

	// RecordFetch records one upstream fetch with duration and error status.
	RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error)

	// RecordEviction records entries removed from the cache for a reason.
	RecordEviction(ctx context.Context, reason string, count int64)

	// RecordWarm records warming-cycle topic outcomes.
	RecordWarm(ctx context.Context, outcome string, count int64)

	// RegisterUsage registers gauges observed from the given callbacks.
	// The returned registration may be nil for no-op implementations.
	RegisterUsage(entries func() int64, sizeBytes func() int64) (metric.Registration, error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	lookupCount   metric.Int64Counter
	fetchCount    metric.Int64Counter
	fetchErrors   metric.Int64Counter
	fetchDuration metric.Float64Histogram
	evictionCount metric.Int64Counter
	warmCount     metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookupCount, err := meter.Int64Counter(
		"cache.lookup.total",
		metric.WithDescription("Total number of cache lookups"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fetchCount, err := meter.Int64Counter(
		"cache.fetch.total",
		metric.WithDescription("Total number of upstream fetches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"cache.fetch.errors",
		metric.WithDescription("Total number of upstream fetch errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"cache.fetch.duration_ms",
		metric.WithDescription("Upstream fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evictionCount, err := meter.Int64Counter(
		"cache.eviction.total",
		metric.WithDescription("Total number of entries evicted from the cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	warmCount, err := meter.Int64Counter(
		"cache.warm.total",
		metric.WithDescription("Total number of warming-cycle topic outcomes"),
		metric.WithUnit("{topic}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		lookupCount:   lookupCount,
		fetchCount:    fetchCount,
		fetchErrors:   fetchErrors,
		fetchDuration: fetchDuration,
		evictionCount: evictionCount,
		warmCount:     warmCount,
	}, nil
}

// RecordLookup records one cache lookup.
// The key itself is never a metric attribute; keys are unbounded and belong
// in spans and logs only.
func (m *metricsImpl) RecordLookup(ctx context.Context, meta FetchMeta, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	if meta.Domain != "" {
		attrs = append(attrs, attribute.String("cache.domain", meta.Domain))
	}

	m.lookupCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFetch records metrics for one upstream fetch.
func (m *metricsImpl) RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error) {
	var attrs []attribute.KeyValue
	if meta.Domain != "" {
		attrs = append(attrs, attribute.String("cache.domain", meta.Domain))
	}

	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.fetchCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	durationMs := float64(duration.Milliseconds())
	m.fetchDuration.Record(ctx, durationMs, opt)
}

// RecordEviction records entries removed from the cache.
func (m *metricsImpl) RecordEviction(ctx context.Context, reason string, count int64) {
	if count <= 0 {
		return
	}
	m.evictionCount.Add(ctx, count, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordWarm records warming-cycle topic outcomes.
func (m *metricsImpl) RecordWarm(ctx context.Context, outcome string, count int64) {
	if count <= 0 {
		return
	}
	m.warmCount.Add(ctx, count, metric.WithAttributes(
		attribute.String("warm.outcome", outcome),
	))
}

// RegisterUsage registers the cache.entries and cache.size_bytes gauges.
func (m *metricsImpl) RegisterUsage(entries func() int64, sizeBytes func() int64) (metric.Registration, error) {
	entriesGauge, err := m.meter.Int64ObservableGauge(
		"cache.entries",
		metric.WithDescription("Entries currently resident in the cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	sizeGauge, err := m.meter.Int64ObservableGauge(
		"cache.size_bytes",
		metric.WithDescription("Approximate bytes held by cached entries"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(entriesGauge, entries())
		o.ObserveInt64(sizeGauge, sizeBytes())
		return nil
	}, entriesGauge, sizeGauge)
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordLookup(ctx context.Context, meta FetchMeta, outcome string) {}

func (m *noopMetrics) RecordFetch(ctx context.Context, meta FetchMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordEviction(ctx context.Context, reason string, count int64) {}

func (m *noopMetrics) RecordWarm(ctx context.Context, outcome string, count int64) {}

func (m *noopMetrics) RegisterUsage(entries func() int64, sizeBytes func() int64) (metric.Registration, error) {
	return nil, nil
}
