package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// TracingSourceFactory wraps every source it builds in a TracingSource.
type TracingSourceFactory struct {
	next   domain.SourceFactory
	tracer trace.Tracer
}

var _ domain.SourceFactory = (*TracingSourceFactory)(nil)

func NewTracingSourceFactory(next domain.SourceFactory) *TracingSourceFactory {
	return &TracingSourceFactory{next: next, tracer: otel.Tracer(tracerName)}
}

func (f *TracingSourceFactory) ForKey(name, apiKey string) domain.EventSource {
	return &TracingSource{next: f.next.ForKey(name, apiKey), name: name, tracer: f.tracer}
}

// TracingSource records a span per upstream call. The API key is never
// attached to spans.
type TracingSource struct {
	next   domain.EventSource
	name   string
	tracer trace.Tracer
}

var _ domain.EventSource = (*TracingSource)(nil)

func (s *TracingSource) FetchEvents(ctx context.Context) (events []domain.RemoteEvent, err error) {
	ctx, span := s.tracer.Start(ctx, "EventSource.FetchEvents",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tenant.name", s.name)),
	)
	defer func() { end(span, err) }()

	events, err = s.next.FetchEvents(ctx)
	span.SetAttributes(attribute.Int("result.count", len(events)))
	return events, err
}

func (s *TracingSource) Overview(ctx context.Context) (_ domain.AccountOverview, err error) {
	ctx, span := s.tracer.Start(ctx, "EventSource.Overview",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tenant.name", s.name)),
	)
	defer func() { end(span, err) }()

	return s.next.Overview(ctx)
}
