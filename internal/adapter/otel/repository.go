package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/boxsync/internal/domain"
)

const tracerName = "github.com/neomorfeo/boxsync/internal/adapter/otel"

// end records err on span, if any, and ends it.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingRepository wraps a domain.TenantRepository with a span per call.
type TracingRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

var _ domain.TenantRepository = (*TracingRepository)(nil)

func NewTracingRepository(next domain.TenantRepository) *TracingRepository {
	return &TracingRepository{next: next, tracer: otel.Tracer(tracerName)}
}

func (r *TracingRepository) Create(ctx context.Context, tenant domain.Tenant) (err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Create", trace.WithAttributes(
		attribute.String("tenant.id", tenant.ID),
		attribute.String("tenant.slug", tenant.Slug),
	))
	defer func() { end(span, err) }()

	return r.next.Create(ctx, tenant)
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (_ domain.Tenant, err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetByID", trace.WithAttributes(
		attribute.String("tenant.id", id),
	))
	defer func() { end(span, err) }()

	return r.next.GetByID(ctx, id)
}

func (r *TracingRepository) GetBySlug(ctx context.Context, slug string) (_ domain.Tenant, err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetBySlug", trace.WithAttributes(
		attribute.String("tenant.slug", slug),
	))
	defer func() { end(span, err) }()

	return r.next.GetBySlug(ctx, slug)
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) (tenants []domain.Tenant, err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.List")
	defer func() { end(span, err) }()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	tenants, err = r.next.List(ctx, filter)
	span.SetAttributes(attribute.Int("result.count", len(tenants)))
	return tenants, err
}

func (r *TracingRepository) Update(ctx context.Context, tenant domain.Tenant) (err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Update", trace.WithAttributes(
		attribute.String("tenant.id", tenant.ID),
		attribute.String("tenant.status", string(tenant.Status)),
	))
	defer func() { end(span, err) }()

	return r.next.Update(ctx, tenant)
}

func (r *TracingRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Delete", trace.WithAttributes(
		attribute.String("tenant.id", id),
	))
	defer func() { end(span, err) }()

	return r.next.Delete(ctx, id)
}
