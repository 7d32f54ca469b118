package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes. It reads
// the monitor's held status without taking a new sample, so probe traffic
// never skews the sampling window. Degraded still serves: a slow cache is
// better than no cache.
func ReadinessHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")

		switch m.Status() {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("CRITICAL"))
		}
	}
}

// ReportResponse is the JSON response for the detailed health endpoint.
type ReportResponse struct {
	Status    string         `json:"status"`
	Reasons   []string       `json:"reasons,omitempty"`
	Window    WindowResponse `json:"window"`
	SampledAt string         `json:"sampled_at,omitempty"`
}

// WindowResponse is the JSON shape of the rolling window evidence.
type WindowResponse struct {
	Samples           int     `json:"samples"`
	Lookups           int64   `json:"lookups"`
	Hits              int64   `json:"hits"`
	HitRate           float64 `json:"hit_rate"`
	Fetches           int64   `json:"fetches"`
	FetchErrors       int64   `json:"fetch_errors"`
	Timeouts          int64   `json:"timeouts"`
	ErrorRate         float64 `json:"error_rate"`
	AvgFetchLatency   string  `json:"avg_fetch_latency,omitempty"`
	Entries           int64   `json:"entries"`
	SizeBytes         int64   `json:"size_bytes"`
	MemoryUtilization float64 `json:"memory_utilization"`
}

// DetailedHandler returns an HTTP handler exposing the latest report with
// its window evidence and breach reasons.
func DetailedHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Report()

		response := ReportResponse{
			Status:  report.Status.String(),
			Reasons: report.Reasons,
			Window: WindowResponse{
				Samples:           report.Window.Samples,
				Lookups:           report.Window.Lookups,
				Hits:              report.Window.Hits,
				HitRate:           report.Window.HitRate,
				Fetches:           report.Window.Fetches,
				FetchErrors:       report.Window.FetchErrors,
				Timeouts:          report.Window.Timeouts,
				ErrorRate:         report.Window.ErrorRate,
				Entries:           report.Window.Entries,
				SizeBytes:         report.Window.SizeBytes,
				MemoryUtilization: report.Window.MemoryUtilization,
			},
		}
		if report.Window.AvgFetchLatency > 0 {
			response.Window.AvgFetchLatency = report.Window.AvgFetchLatency.String()
		}
		if !report.SampledAt.IsZero() {
			response.SampledAt = report.SampledAt.UTC().Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")

		switch report.Status {
		case StatusHealthy, StatusDegraded:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers all health handlers on the given mux.
func RegisterHandlers(mux *http.ServeMux, m *Monitor) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(m))
	mux.HandleFunc("/health", DetailedHandler(m))
}
