package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FetchMeta describes one cache fetch for telemetry purposes.
type FetchMeta struct {
	Key      string // Normalized cache key (required)
	Topic    string // Raw topic as requested (optional)
	Domain   string // Qualifier domain, e.g. "typescript" (optional)
	Priority string // Warm tier name, e.g. "high" (optional)
}

// SpanName returns the deterministic span name for this fetch.
// Format: cache.fetch.<domain> or cache.fetch
func (m FetchMeta) SpanName() string {
	if m.Domain != "" {
		return "cache.fetch." + m.Domain
	}
	return "cache.fetch"
}

// Validate checks that the metadata carries the required key.
func (m FetchMeta) Validate() error {
	if m.Key == "" {
		return ErrMissingKey
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with fetch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an upstream fetch.
	StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with fetch metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	// Build attributes
	attrs := []attribute.KeyValue{
		attribute.String("cache.key", meta.Key),
		attribute.Bool("cache.error", false), // Will be updated in EndSpan if error
	}

	// Add optional attributes if present
	if meta.Topic != "" {
		attrs = append(attrs, attribute.String("cache.topic", meta.Topic))
	}
	if meta.Domain != "" {
		attrs = append(attrs, attribute.String("cache.domain", meta.Domain))
	}
	if meta.Priority != "" {
		attrs = append(attrs, attribute.String("cache.priority", meta.Priority))
	}

	ctx, span := t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

func (t *noopTracer) StartSpan(ctx context.Context, meta FetchMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
