package observe

import (
	"context"
	"testing"
	"time"
)

func TestObserverContract_Noops(t *testing.T) {
	cfg := Config{
		ServiceName: "observe-test",
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "none",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Exporter: "none",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}

	if obs.Tracer() == nil {
		t.Fatalf("expected non-nil tracer")
	}
	if obs.Meter() == nil {
		t.Fatalf("expected non-nil meter")
	}
	if obs.Logger() == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestLoggerContract_WithComponent(t *testing.T) {
	logger := NopLogger()
	if logger.WithComponent("manager") == nil {
		t.Fatalf("WithComponent should return non-nil logger")
	}
}

func TestMetricsContract_NoPanic(t *testing.T) {
	metrics := NopMetrics()
	ctx := context.Background()
	meta := FetchMeta{Key: "noop"}

	metrics.RecordLookup(ctx, meta, OutcomeHit)
	metrics.RecordFetch(ctx, meta, 10*time.Millisecond, nil)
	metrics.RecordEviction(ctx, ReasonCapacity, 1)
	metrics.RecordWarm(ctx, WarmOutcomeWarmed, 1)
	if _, err := metrics.RegisterUsage(func() int64 { return 0 }, func() int64 { return 0 }); err != nil {
		t.Fatalf("RegisterUsage on noop should not error: %v", err)
	}
}

func TestTracerContract_NoPanic(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	_, span := tracer.StartSpan(ctx, FetchMeta{Key: "noop"})
	tracer.EndSpan(span, nil)
}
