package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

const tracerName = "github.com/neomorfeo/workflowiq/internal/adapter/otel"

// TracingInstanceStore wraps a domain.InstanceStore with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingInstanceStore struct {
	next   domain.InstanceStore
	tracer trace.Tracer
}

// Compile-time check: TracingInstanceStore implements domain.InstanceStore.
var _ domain.InstanceStore = (*TracingInstanceStore)(nil)

// NewTracingInstanceStore creates a tracing decorator around the given store.
func NewTracingInstanceStore(next domain.InstanceStore) *TracingInstanceStore {
	return &TracingInstanceStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingInstanceStore) Get(ctx context.Context, id domain.ID) (*domain.Instance, error) {
	ctx, span := s.tracer.Start(ctx, "InstanceStore.Get",
		trace.WithAttributes(
			attribute.String("tenant.code", domain.TenantCode(ctx)),
			attribute.String("instance.id", id.Hex()),
		),
	)
	defer span.End()

	inst, err := s.next.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return inst, err
}

func (s *TracingInstanceStore) GetByEntity(ctx context.Context, entityType, entityID string) (*domain.Instance, error) {
	ctx, span := s.tracer.Start(ctx, "InstanceStore.GetByEntity",
		trace.WithAttributes(
			attribute.String("tenant.code", domain.TenantCode(ctx)),
			attribute.String("entity.type", entityType),
			attribute.String("entity.id", entityID),
		),
	)
	defer span.End()

	inst, err := s.next.GetByEntity(ctx, entityType, entityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return inst, err
}

func (s *TracingInstanceStore) Create(ctx context.Context, inst *domain.Instance) error {
	ctx, span := s.tracer.Start(ctx, "InstanceStore.Create",
		trace.WithAttributes(
			attribute.String("tenant.code", domain.TenantCode(ctx)),
			attribute.String("instance.id", inst.ID.Hex()),
			attribute.String("instance.state", inst.CurrentState),
		),
	)
	defer span.End()

	err := s.next.Create(ctx, inst)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingInstanceStore) Append(ctx context.Context, id domain.ID, version int64, entry domain.HistoryEntry, newState string, variables map[string]any) (*domain.Instance, error) {
	ctx, span := s.tracer.Start(ctx, "InstanceStore.Append",
		trace.WithAttributes(
			attribute.String("tenant.code", domain.TenantCode(ctx)),
			attribute.String("instance.id", id.Hex()),
			attribute.Int64("instance.version", version),
			attribute.String("transition.event", entry.Event),
			attribute.String("transition.to_state", newState),
		),
	)
	defer span.End()

	inst, err := s.next.Append(ctx, id, version, entry, newState, variables)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("result.version", inst.Version))
	}
	return inst, err
}
