package health

import (
	"context"
	"time"
)

// Status grades cache health.
type Status int

const (
	// StatusHealthy indicates every signal is within thresholds.
	StatusHealthy Status = iota
	// StatusDegraded indicates effectiveness is reduced: low hit rate or
	// slow upstream fetches.
	StatusDegraded
	// StatusCritical indicates the cache is failing its purpose: upstream
	// errors dominate or memory is effectively exhausted.
	StatusCritical
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Counters is a cumulative snapshot of cache activity. The monitor samples
// these and evaluates deltas, so every field must be monotonic except the
// instantaneous Entries and SizeBytes.
type Counters struct {
	Hits        int64
	Misses      int64
	Fetches     int64
	FetchErrors int64
	Timeouts    int64
	FetchTime   time.Duration

	Entries    int64
	SizeBytes  int64
	MaxEntries int64
	MaxBytes   int64
}

// Source supplies the current counters. Implemented by the cache manager;
// the monitor is strictly read-only and never mutates cache state.
type Source func(ctx context.Context) Counters

// Thresholds bound the signals the monitor grades.
type Thresholds struct {
	// MinHitRate is the hit-rate floor over the window. Below it the cache
	// is degraded.
	// Default: 0.60
	MinHitRate float64

	// MaxAvgLatency is the average upstream fetch latency ceiling over the
	// window. Above it the cache is degraded.
	// Default: 1.5s
	MaxAvgLatency time.Duration

	// MaxErrorRate is the fetch error-rate ceiling over the window,
	// timeouts included. Above it the cache is critical.
	// Default: 0.25
	MaxErrorRate float64

	// MaxMemoryUtilization is the byte-capacity fraction at which the
	// cache is critical. It flags stores pinned against their byte budget;
	// size MaxBytes with headroom above the expected working set.
	// Default: 0.95
	MaxMemoryUtilization float64

	// WindowSize is the number of samples the rolling window spans.
	// Default: 12
	WindowSize int

	// RecoverySamples is the number of consecutive clean samples required
	// before the status steps down. Escalation is immediate.
	// Default: 3
	RecoverySamples int

	// MinWindowLookups is the minimum demand lookups in the window before
	// the hit rate is judged. Low-traffic windows stay healthy.
	// Default: 10
	MinWindowLookups int64
}

// withDefaults fills unset fields with the documented defaults.
func (t Thresholds) withDefaults() Thresholds {
	if t.MinHitRate == 0 {
		t.MinHitRate = 0.60
	}
	if t.MaxAvgLatency == 0 {
		t.MaxAvgLatency = 1500 * time.Millisecond
	}
	if t.MaxErrorRate == 0 {
		t.MaxErrorRate = 0.25
	}
	if t.MaxMemoryUtilization == 0 {
		t.MaxMemoryUtilization = 0.95
	}
	if t.WindowSize <= 0 {
		t.WindowSize = 12
	}
	if t.RecoverySamples <= 0 {
		t.RecoverySamples = 3
	}
	if t.MinWindowLookups <= 0 {
		t.MinWindowLookups = 10
	}
	return t
}

// validate checks ranges after defaults are applied.
func (t Thresholds) validate() error {
	if t.MinHitRate < 0 || t.MinHitRate > 1 {
		return errRange("min hit rate", t.MinHitRate)
	}
	if t.MaxErrorRate < 0 || t.MaxErrorRate > 1 {
		return errRange("max error rate", t.MaxErrorRate)
	}
	if t.MaxMemoryUtilization < 0 || t.MaxMemoryUtilization > 1 {
		return errRange("max memory utilization", t.MaxMemoryUtilization)
	}
	if t.MaxAvgLatency < 0 {
		return errRange("max average latency", t.MaxAvgLatency.Seconds())
	}
	return nil
}

// WindowStats summarizes activity over the rolling window. Entries,
// SizeBytes and MemoryUtilization are instantaneous; the rest are deltas.
type WindowStats struct {
	// Samples is how many deltas the window currently spans.
	Samples int

	Lookups int64
	Hits    int64
	HitRate float64

	Fetches         int64
	FetchErrors     int64
	Timeouts        int64
	ErrorRate       float64
	AvgFetchLatency time.Duration

	Entries           int64
	SizeBytes         int64
	MemoryUtilization float64
}

// Report is the monitor's judgment at a sample point.
type Report struct {
	// Status is the held status after hysteresis.
	Status Status

	// Reasons name each breached threshold with observed and limit values.
	Reasons []string

	// Window is the evidence the judgment was made on.
	Window WindowStats

	// SampledAt is when the sample was taken.
	SampledAt time.Time
}
