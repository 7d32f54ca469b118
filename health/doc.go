// Package health grades cache effectiveness from periodic counter samples.
//
// This package implements a passive monitor for the knowledge cache. It
// never probes anything itself: the cache manager hands it a Source that
// snapshots cumulative counters, the monitor samples that source on a
// schedule, and it judges the deltas over a rolling window against
// configurable thresholds.
//
// # Core Concepts
//
// The Status type represents the graded state: Healthy, Degraded, or
// Critical. Degraded means the cache still works but is losing its point,
// a low hit rate or slow upstream fetches. Critical means it is failing
// its purpose, upstream errors dominating or memory effectively exhausted.
//
// Judgments are windowed, never single-sample. One slow fetch or one
// failed lookup cannot flip the status, and recovery requires several
// consecutive clean samples, so consumers of the status see stable
// transitions instead of flapping.
//
// # Basic Usage
//
//	monitor, err := health.NewMonitor(cacheCounters, health.Thresholds{
//	    MinHitRate:   0.60,
//	    MaxErrorRate: 0.25,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Sample on a schedule, then read the latest judgment anywhere.
//	report := monitor.Sample(ctx)
//	if report.Status == health.StatusCritical {
//	    log.Printf("cache critical: %v", report.Reasons)
//	}
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common probe patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe reading the held status
//	http.Handle("/readyz", health.ReadinessHandler(monitor))
//
//	// Detailed report with window evidence and breach reasons
//	http.Handle("/health", health.DetailedHandler(monitor))
package health
