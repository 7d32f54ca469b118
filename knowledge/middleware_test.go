package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtthornton/TappMCP-sub003/observe"
)

type fetchRecord struct {
	meta     observe.FetchMeta
	duration time.Duration
	err      error
}

type recordingMetrics struct {
	mu      sync.Mutex
	fetches []fetchRecord
}

func (m *recordingMetrics) RecordLookup(context.Context, observe.FetchMeta, string) {}

func (m *recordingMetrics) RecordFetch(_ context.Context, meta observe.FetchMeta, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, fetchRecord{meta: meta, duration: d, err: err})
}

func (m *recordingMetrics) RecordEviction(context.Context, string, int64) {}

func (m *recordingMetrics) RecordWarm(context.Context, string, int64) {}

func (m *recordingMetrics) RegisterUsage(func() int64, func() int64) (metric.Registration, error) {
	return nil, nil
}

type recordingTracer struct {
	noop   observe.Tracer
	mu     sync.Mutex
	starts []observe.FetchMeta
	ends   []error
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{noop: observe.NopTracer()}
}

func (t *recordingTracer) StartSpan(ctx context.Context, meta observe.FetchMeta) (context.Context, trace.Span) {
	t.mu.Lock()
	t.starts = append(t.starts, meta)
	t.mu.Unlock()
	return t.noop.StartSpan(ctx, meta)
}

func (t *recordingTracer) EndSpan(span trace.Span, err error) {
	t.mu.Lock()
	t.ends = append(t.ends, err)
	t.mu.Unlock()
	t.noop.EndSpan(span, err)
}

func TestInstrument_PassThrough(t *testing.T) {
	want := &Result{Topic: "react hooks", Content: []byte("payload")}
	next := FetcherFunc(func(ctx context.Context, topic string) (*Result, error) {
		return want, nil
	})

	metrics := &recordingMetrics{}
	tracer := newRecordingTracer()
	f := Instrument(next, InstrumentConfig{Tracer: tracer, Metrics: metrics})

	got, err := f.Fetch(context.Background(), "react hooks")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != want {
		t.Error("Fetch() did not pass the result through unchanged")
	}

	if len(metrics.fetches) != 1 {
		t.Fatalf("recorded fetches = %d, want 1", len(metrics.fetches))
	}
	rec := metrics.fetches[0]
	if rec.meta.Topic != "react hooks" || rec.meta.Key != "react hooks" {
		t.Errorf("recorded meta = %+v, want topic and key %q", rec.meta, "react hooks")
	}
	if rec.err != nil {
		t.Errorf("recorded err = %v, want nil", rec.err)
	}

	if len(tracer.starts) != 1 || len(tracer.ends) != 1 {
		t.Fatalf("spans started/ended = %d/%d, want 1/1", len(tracer.starts), len(tracer.ends))
	}
	if tracer.ends[0] != nil {
		t.Errorf("span ended with %v, want nil", tracer.ends[0])
	}
}

func TestInstrument_ErrorPassThrough(t *testing.T) {
	upstreamErr := NewNetworkError("react hooks", 503, nil)
	next := FetcherFunc(func(ctx context.Context, topic string) (*Result, error) {
		return nil, upstreamErr
	})

	metrics := &recordingMetrics{}
	tracer := newRecordingTracer()
	f := Instrument(next, InstrumentConfig{Tracer: tracer, Metrics: metrics})

	_, err := f.Fetch(context.Background(), "react hooks")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Fetch() error = %v, want ErrNetwork", err)
	}

	if len(metrics.fetches) != 1 || metrics.fetches[0].err == nil {
		t.Error("fetch error was not recorded")
	}
	if len(tracer.ends) != 1 || tracer.ends[0] == nil {
		t.Error("span did not end with the fetch error")
	}
}

func TestInstrument_Defaults(t *testing.T) {
	next := FetcherFunc(func(ctx context.Context, topic string) (*Result, error) {
		return &Result{Topic: topic}, nil
	})

	f := Instrument(next, InstrumentConfig{})

	res, err := f.Fetch(context.Background(), "topic")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Topic != "topic" {
		t.Errorf("Topic = %q, want %q", res.Topic, "topic")
	}
}

func TestInstrument_MeasuresDuration(t *testing.T) {
	next := FetcherFunc(func(ctx context.Context, topic string) (*Result, error) {
		time.Sleep(20 * time.Millisecond)
		return &Result{Topic: topic}, nil
	})

	metrics := &recordingMetrics{}
	f := Instrument(next, InstrumentConfig{Metrics: metrics})

	if _, err := f.Fetch(context.Background(), "topic"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(metrics.fetches) != 1 {
		t.Fatalf("recorded fetches = %d, want 1", len(metrics.fetches))
	}
	if metrics.fetches[0].duration < 20*time.Millisecond {
		t.Errorf("duration = %v, want >= 20ms", metrics.fetches[0].duration)
	}
}
