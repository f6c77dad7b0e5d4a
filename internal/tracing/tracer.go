// Package tracing wires the reasoning engine's otel.Tracer calls to a
// real SDK-backed TracerProvider instead of the no-op global default,
// and keeps a bounded in-memory record of recent spans for inspection.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultMaxSpans bounds the Recorder's ring buffer.
const DefaultMaxSpans = 1000

// Span is a captured, read-only view of one exported span.
type Span struct {
	TraceID    string
	SpanID     string
	Name       string
	DurationMs float64
	Attributes map[string]string
	Status     string
}

// Recorder is an sdktrace.SpanExporter that retains the most recent
// spans in memory rather than shipping them to a collector. It is the
// exporter half of the TracerProvider Init wires up.
type Recorder struct {
	mu    sync.Mutex
	spans []Span
	max   int
}

// NewRecorder returns a Recorder retaining at most max spans.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultMaxSpans
	}
	return &Recorder{max: max}
}

// ExportSpans implements sdktrace.SpanExporter.
func (r *Recorder) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range spans {
		attrs := make(map[string]string, len(s.Attributes()))
		for _, a := range s.Attributes() {
			attrs[string(a.Key)] = a.Value.Emit()
		}
		r.spans = append(r.spans, Span{
			TraceID:    s.SpanContext().TraceID().String(),
			SpanID:     s.SpanContext().SpanID().String(),
			Name:       s.Name(),
			DurationMs: float64(s.EndTime().Sub(s.StartTime())) / 1e6,
			Attributes: attrs,
			Status:     s.Status().Code.String(),
		})
	}
	if over := len(r.spans) - r.max; over > 0 {
		r.spans = r.spans[over:]
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
	return nil
}

// Spans returns a snapshot of the retained spans, oldest first.
func (r *Recorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Span, len(r.spans))
	copy(out, r.spans)
	return out
}

// Init installs an SDK-backed TracerProvider as the otel global,
// exporting every span to a fresh Recorder. The returned shutdown func
// must be called on exit to flush and release the provider; callers
// that skip it leak nothing fatal, but recent spans won't be flushed.
func Init(ctx context.Context, serviceName string, maxSpans int) (*Recorder, func(context.Context) error, error) {
	rec := NewRecorder(maxSpans)

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		attribute.String("component", "reasoning-engine"),
	))
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(rec),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return rec, tp.Shutdown, nil
}
