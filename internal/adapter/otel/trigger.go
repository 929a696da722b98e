package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// TracingTrigger wraps a domain.SyncTrigger with a producer span.
type TracingTrigger struct {
	next   domain.SyncTrigger
	tracer trace.Tracer
}

var _ domain.SyncTrigger = (*TracingTrigger)(nil)

func NewTracingTrigger(next domain.SyncTrigger) *TracingTrigger {
	return &TracingTrigger{next: next, tracer: otel.Tracer(tracerName)}
}

func (t *TracingTrigger) TriggerSync(ctx context.Context, reason string) (jobID int64, err error) {
	ctx, span := t.tracer.Start(ctx, "SyncTrigger.TriggerSync",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("sync.reason", reason)),
	)
	defer func() { end(span, err) }()

	jobID, err = t.next.TriggerSync(ctx, reason)
	span.SetAttributes(attribute.Int64("job.id", jobID))
	return jobID, err
}
