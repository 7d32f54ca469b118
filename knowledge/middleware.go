package knowledge

import (
	"context"
	"time"

	"github.com/wtthornton/TappMCP-sub003/observe"
)

// InstrumentConfig configures fetch instrumentation.
type InstrumentConfig struct {
	// Tracer opens one span per upstream fetch. Default: no tracing.
	Tracer observe.Tracer

	// Metrics records fetch totals, errors and duration. Default: discard.
	Metrics observe.Metrics

	// Logger logs fetch failures. Default: discard.
	Logger observe.Logger
}

// Instrument wraps next so every upstream fetch is traced, measured and
// logged. Results and errors pass through unchanged.
//
// Install it between the cache and the transport client: deduplication
// collapses concurrent callers before the fetcher runs, so each wrapped
// call corresponds to exactly one upstream request.
func Instrument(next Fetcher, cfg InstrumentConfig) Fetcher {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observe.NopTracer()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &instrumentedFetcher{
		next:    next,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger.WithComponent("knowledge"),
	}
}

type instrumentedFetcher struct {
	next    Fetcher
	tracer  observe.Tracer
	metrics observe.Metrics
	logger  observe.Logger
}

// Fetch delegates to the wrapped fetcher inside a span.
func (f *instrumentedFetcher) Fetch(ctx context.Context, topic string) (*Result, error) {
	meta := observe.FetchMeta{Key: topic, Topic: topic}

	ctx, span := f.tracer.StartSpan(ctx, meta)
	start := time.Now()

	res, err := f.next.Fetch(ctx, topic)
	duration := time.Since(start)

	f.metrics.RecordFetch(ctx, meta, duration, err)
	f.tracer.EndSpan(span, err)

	if err != nil {
		f.logger.Warn(ctx, "upstream fetch failed",
			observe.Field{Key: "topic", Value: topic},
			observe.Field{Key: "duration_ms", Value: duration.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return res, err
}

// Ensure instrumentedFetcher implements Fetcher
var _ Fetcher = (*instrumentedFetcher)(nil)
