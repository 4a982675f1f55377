package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// WorkflowService orchestrates transitions: it resolves the tenant-scoped
// instance and the system-scoped definition as two explicit steps, runs the
// pure engine, persists the result, and keeps the order's mirrored fields
// in sync within the same logical operation.
type WorkflowService struct {
	definitions domain.DefinitionStore
	instances   domain.InstanceStore
	orders      domain.OrderStore
	publisher   domain.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorkflowService creates a service with the given adapters.
func NewWorkflowService(
	definitions domain.DefinitionStore,
	instances domain.InstanceStore,
	orders domain.OrderStore,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *WorkflowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{
		definitions: definitions,
		instances:   instances,
		orders:      orders,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher installs the event publisher after construction. The queue
// client needs the service for its workers before the publisher exists, so
// the composition root wires the publisher in a second step.
func (s *WorkflowService) SetPublisher(p domain.EventPublisher) {
	s.publisher = p
}

// InitWorkflow attaches a new instance of the active definition to an
// order, seeded at the definition's start state.
func (s *WorkflowService) InitWorkflow(ctx context.Context, orderID domain.ID, workflowCode string) (*domain.Instance, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if inst, ok := s.resolveInstance(ctx, order); ok {
		return nil, fmt.Errorf("order %s already has workflow instance %s", orderID, inst.ID)
	}

	def, err := s.definitions.GetActive(ctx, workflowCode)
	if err != nil {
		return nil, err
	}
	start, err := def.StartState()
	if err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	inst := domain.NewInstance(id, def.ID, domain.EntityTypeOrder, orderID.Hex(), start.Code, "workflow initialized", s.now())
	if err := s.instances.Create(ctx, &inst); err != nil {
		return nil, fmt.Errorf("creating instance: %w", err)
	}

	if err := s.syncOrder(ctx, orderID, def.Code, &inst, nil); err != nil {
		return nil, err
	}

	return &inst, nil
}

// fireAttempts bounds optimistic-concurrency retries: reload once and
// re-fire when a concurrent writer won the version race.
const fireAttempts = 2

// FireEvent executes one transition for the order's instance. The order's
// legacy status and mirrored state are updated together with the instance;
// the engine's action list is applied through the entity layer.
func (s *WorkflowService) FireEvent(ctx context.Context, orderID domain.ID, event, reason string, variables map[string]any) (*domain.Instance, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	inst, ok := s.resolveInstance(ctx, order)
	if !ok {
		// Missing or dangling reference: repair before transitioning.
		inst, err = s.repairOrder(ctx, order, "")
		if err != nil {
			return nil, fmt.Errorf("repairing instance for order %s: %w", orderID, err)
		}
	}

	def, err := s.definitions.GetByID(ctx, inst.WorkflowID)
	if err != nil {
		return nil, err
	}

	actor := domain.ActorFrom(ctx)

	var updated *domain.Instance
	for attempt := 0; attempt < fireAttempts; attempt++ {
		res, err := domain.Fire(def, inst, domain.FireRequest{
			Event:     event,
			Actor:     actor,
			Reason:    reason,
			Variables: variables,
			Fields:    order.Fields(),
			Now:       s.now(),
		})
		if err != nil {
			return nil, err
		}

		if res.Ambiguous {
			s.logger.WarnContext(ctx, "ambiguous transition, chose first by declaration order",
				"workflow", def.Code,
				"state", inst.CurrentState,
				"event", event,
				"transition", res.Transition.ID,
			)
		}

		merged := mergeVariables(inst.Variables, variables)
		updated, err = s.instances.Append(ctx, inst.ID, inst.Version, res.Entry, res.NewState, merged)
		if err == nil {
			if syncErr := s.syncOrder(ctx, orderID, order.WorkflowCode, updated, res.Actions); syncErr != nil {
				return nil, syncErr
			}
			s.publish(ctx, def, updated, res)
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) || attempt == fireAttempts-1 {
			return nil, err
		}

		// Lost the version race: reload and re-fire against fresh state.
		inst, err = s.instances.Get(ctx, inst.ID)
		if err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// AvailableTransitions returns the transitions leaving the instance's
// current state, in declaration order.
func (s *WorkflowService) AvailableTransitions(ctx context.Context, orderID domain.ID) ([]domain.Transition, error) {
	inst, err := s.GetInstance(ctx, orderID)
	if err != nil {
		return nil, err
	}

	def, err := s.definitions.GetByID(ctx, inst.WorkflowID)
	if err != nil {
		return nil, err
	}

	return def.TransitionsFrom(inst.CurrentState), nil
}

// GetInstance returns the order's workflow instance.
func (s *WorkflowService) GetInstance(ctx context.Context, orderID domain.ID) (*domain.Instance, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	inst, ok := s.resolveInstance(ctx, order)
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return inst, nil
}

// resolveInstance follows the order's instance reference, tolerating the
// hex and binary forms and falling back to an entity lookup when the
// reference is absent or malformed. ok is false when no valid instance
// exists for the order.
func (s *WorkflowService) resolveInstance(ctx context.Context, order *domain.Order) (*domain.Instance, bool) {
	if order.WorkflowInstance != "" {
		if id, err := domain.ParseID(order.WorkflowInstance); err == nil {
			if inst, err := s.instances.Get(ctx, id); err == nil {
				return inst, true
			}
		}
	}

	// Reference lost or malformed; the instance may still exist keyed by
	// entity.
	inst, err := s.instances.GetByEntity(ctx, domain.EntityTypeOrder, order.ID.Hex())
	if err != nil {
		return nil, false
	}
	return inst, true
}

// syncOrder writes the denormalized workflow cache and any update_field
// action results back to the order in one write.
func (s *WorkflowService) syncOrder(ctx context.Context, orderID domain.ID, workflowCode string, inst *domain.Instance, actions []domain.Action) error {
	fields := map[string]any{
		"workflow_instance": inst.ID.Hex(),
		"workflow_state":    inst.CurrentState,
	}
	if workflowCode != "" {
		fields["workflow_code"] = workflowCode
	}
	if legacy, ok := domain.ToLegacyStatus(inst.CurrentState); ok {
		fields["status"] = legacy
	}
	for _, a := range actions {
		if a.Type == domain.ActionUpdateField && a.Field != "" {
			fields[a.Field] = a.Value
		}
	}

	if err := s.orders.UpdateWorkflowFields(ctx, orderID, fields); err != nil {
		return fmt.Errorf("syncing order fields: %w", err)
	}
	return nil
}

// publish emits the transition event for async consumers. The transition
// is already durable at this point, so a publish failure is logged rather
// than surfaced as a transition failure.
func (s *WorkflowService) publish(ctx context.Context, def *domain.Definition, inst *domain.Instance, res *domain.FireResult) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, domain.TransitionEvent{
		TenantCode: domain.TenantCode(ctx),
		InstanceID: inst.ID,
		EntityType: inst.EntityType,
		EntityID:   inst.EntityID,
		FromState:  res.Entry.FromState,
		ToState:    res.Entry.ToState,
		Event:      res.Entry.Event,
		Operator:   res.Entry.Operator,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "publishing transition event",
			"workflow", def.Code,
			"instance", inst.ID.Hex(),
			"error", err,
		)
	}
}

func mergeVariables(current, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(incoming))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
