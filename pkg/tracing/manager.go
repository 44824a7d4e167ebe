// Package tracing manages spans for every traced unit of work in the
// server. It speaks only the OpenTelemetry API; exporters are wired
// separately in pkg/observability.
//
// Span lifecycle follows the otel contract: attributes, events, status and
// exceptions may be attached while the span is recording; once ended the
// span is immutable and further mutation is silently ignored. Ambient
// helpers act on the span carried by the context and degrade to no-ops on
// the otel no-op span, so callers never nil-check.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Manager creates spans from one named tracer.
type Manager struct {
	tracer trace.Tracer
}

// NewManager wraps a tracer, typically otel.Tracer(instrumentation name).
func NewManager(tracer trace.Tracer) *Manager {
	return &Manager{tracer: tracer}
}

// StartSpan starts a recording span named name, tagged with an
// operation.name attribute plus any extra attributes. The caller owns the
// span and must End it.
func (m *Manager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, Operation(name))
	all = append(all, attrs...)
	return m.tracer.Start(ctx, name, trace.WithAttributes(all...))
}

// WithSpan runs fn inside a new span that is the ambient active span for
// fn's dynamic extent. The span ends on every path. On failure the error
// is recorded on the span, the span status is set to Error with the
// failure's message, and the original error is returned unchanged.
func (m *Manager) WithSpan(ctx context.Context, name string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := m.StartSpan(ctx, name, attrs...)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Measure composes WithSpan with automatic operation.duration_ms and
// operation.status attributes.
func (m *Manager) Measure(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	return m.WithSpan(ctx, name, attrs, func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		status := "success"
		if err != nil {
			status = "error"
		}
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			KeyOperationDurationMs.Float64(float64(time.Since(start).Microseconds())/1000.0),
			KeyOperationStatus.String(status),
		)
		return err
	})
}

// CurrentSpan returns the ambient active span. When none is active it
// returns otel's inert no-op span, on which every operation is safe.
func CurrentSpan(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanAttributes attaches attributes to the ambient active span.
// A no-op when that span is not recording.
func SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// AddSpanEvent attaches a timestamped event to the ambient active span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordException records err (type, message, stack) on the ambient
// active span. Purely observational: propagation of err stays with the
// caller.
func RecordException(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithStackTrace(true), trace.WithAttributes(attrs...))
}

// SetSpanStatus sets the ambient active span's status.
func SetSpanStatus(ctx context.Context, code codes.Code, message string) {
	trace.SpanFromContext(ctx).SetStatus(code, message)
}
