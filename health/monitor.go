package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wtthornton/TappMCP-sub003/observe"
)

// minWindowFetches is the minimum fetch count in the window before the
// error rate is judged. A single failed fetch in an idle window is not an
// outage.
const minWindowFetches = 3

// Monitor grades cache health from periodic counter samples.
//
// Contract:
//   - Sample is read-only: it never invalidates, warms or otherwise mutates
//     the cache it observes.
//   - Signals are judged over a rolling window of samples, never a single
//     reading, so one slow fetch cannot flap the status.
//   - Escalation is immediate; recovery to a lower status requires
//     RecoverySamples consecutive samples below the held status.
//   - Safe for concurrent use.
type Monitor struct {
	src    Source
	th     Thresholds
	logger observe.Logger

	mu sync.Mutex
	// ring holds cumulative snapshots, newest at head-1. With capacity
	// WindowSize+1 the oldest retained snapshot is exactly WindowSize
	// samples back.
	ring   []Counters
	head   int
	filled int

	status      Status
	cleanStreak int
	last        Report
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the logger used for status transitions.
func WithLogger(logger observe.Logger) MonitorOption {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMonitor creates a monitor reading counters from src and grading them
// against t. Zero threshold fields take the documented defaults.
func NewMonitor(src Source, t Thresholds, opts ...MonitorOption) (*Monitor, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	t = t.withDefaults()
	if err := t.validate(); err != nil {
		return nil, err
	}

	m := &Monitor{
		src:    src,
		th:     t,
		logger: observe.NopLogger(),
		ring:   make([]Counters, t.WindowSize+1),
		status: StatusHealthy,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("health")
	return m, nil
}

// Sample takes a counter snapshot, re-evaluates the window and returns the
// resulting report. Called periodically by the cache manager's sampler.
func (m *Monitor) Sample(ctx context.Context) Report {
	cur := m.src(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.push(cur)
	w := m.window(cur)
	computed, reasons := m.evaluate(w)

	prev := m.status
	switch {
	case computed >= m.status:
		m.status = computed
		m.cleanStreak = 0
	default:
		m.cleanStreak++
		if m.cleanStreak >= m.th.RecoverySamples {
			m.status = computed
			m.cleanStreak = 0
		} else {
			reasons = append(reasons, fmt.Sprintf("recovering from %s: %d/%d clean samples",
				m.status, m.cleanStreak, m.th.RecoverySamples))
		}
	}

	m.last = Report{
		Status:    m.status,
		Reasons:   reasons,
		Window:    w,
		SampledAt: time.Now(),
	}

	if m.status != prev {
		m.logTransition(ctx, prev, m.status, reasons)
	}
	return m.last
}

// Report returns the most recent report without taking a new sample. Before
// the first sample the status is healthy with an empty window.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Status returns the currently held status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) push(c Counters) {
	m.ring[m.head] = c
	m.head = (m.head + 1) % len(m.ring)
	if m.filled < len(m.ring) {
		m.filled++
	}
}

// window computes deltas between the newest and oldest retained snapshots.
// cur carries the instantaneous gauges.
func (m *Monitor) window(cur Counters) WindowStats {
	oldestIdx := (m.head - m.filled + len(m.ring)) % len(m.ring)
	oldest := m.ring[oldestIdx]

	w := WindowStats{
		Samples:     m.filled - 1,
		Hits:        cur.Hits - oldest.Hits,
		Lookups:     (cur.Hits + cur.Misses) - (oldest.Hits + oldest.Misses),
		Fetches:     cur.Fetches - oldest.Fetches,
		FetchErrors: cur.FetchErrors - oldest.FetchErrors,
		Timeouts:    cur.Timeouts - oldest.Timeouts,
		Entries:     cur.Entries,
		SizeBytes:   cur.SizeBytes,
	}
	if w.Lookups > 0 {
		w.HitRate = float64(w.Hits) / float64(w.Lookups)
	}
	if w.Fetches > 0 {
		w.ErrorRate = float64(w.FetchErrors+w.Timeouts) / float64(w.Fetches)
		w.AvgFetchLatency = (cur.FetchTime - oldest.FetchTime) / time.Duration(w.Fetches)
	}
	if cur.MaxBytes > 0 {
		w.MemoryUtilization = float64(cur.SizeBytes) / float64(cur.MaxBytes)
	}
	return w
}

// evaluate grades the window. Degraded signals mark reduced effectiveness,
// critical signals mark a failing cache; the worst breached signal wins.
func (m *Monitor) evaluate(w WindowStats) (Status, []string) {
	status := StatusHealthy
	var reasons []string

	raise := func(s Status, reason string) {
		if s > status {
			status = s
		}
		reasons = append(reasons, reason)
	}

	if w.Lookups >= m.th.MinWindowLookups && w.HitRate < m.th.MinHitRate {
		raise(StatusDegraded, fmt.Sprintf("hit rate %.2f below minimum %.2f over %d lookups",
			w.HitRate, m.th.MinHitRate, w.Lookups))
	}
	if w.Fetches > 0 && w.AvgFetchLatency > m.th.MaxAvgLatency {
		raise(StatusDegraded, fmt.Sprintf("average fetch latency %s above maximum %s",
			w.AvgFetchLatency.Round(time.Millisecond), m.th.MaxAvgLatency))
	}
	if w.Fetches >= minWindowFetches && w.ErrorRate > m.th.MaxErrorRate {
		raise(StatusCritical, fmt.Sprintf("fetch error rate %.2f above maximum %.2f over %d fetches",
			w.ErrorRate, m.th.MaxErrorRate, w.Fetches))
	}
	if w.MemoryUtilization >= m.th.MaxMemoryUtilization {
		raise(StatusCritical, fmt.Sprintf("memory utilization %.2f at or above maximum %.2f",
			w.MemoryUtilization, m.th.MaxMemoryUtilization))
	}
	return status, reasons
}

func (m *Monitor) logTransition(ctx context.Context, from, to Status, reasons []string) {
	fields := []observe.Field{
		{Key: "from", Value: from.String()},
		{Key: "to", Value: to.String()},
		{Key: "reasons", Value: reasons},
	}
	if to > from {
		m.logger.Warn(ctx, "health status escalated", fields...)
		return
	}
	m.logger.Info(ctx, "health status recovered", fields...)
}
