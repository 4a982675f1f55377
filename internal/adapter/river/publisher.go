package river

import (
	"context"
	"fmt"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries a completed transition for async processing.
// River serializes this as JSON into its job queue table. It is a full
// snapshot of the transition, so the worker never needs to resolve the
// tenant database.
type TransitionJobArgs struct {
	TenantCode string `json:"tenant_code"`
	InstanceID string `json:"instance_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	Event      string `json:"event"`
	Operator   string `json:"operator"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "workflow.transition.recorded" }

// BackfillJobArgs requests a repair pass over one tenant's orders.
type BackfillJobArgs struct {
	TenantCode   string `json:"tenant_code"`
	WorkflowCode string `json:"workflow_code"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (BackfillJobArgs) Kind() string { return "workflow.backfill" }

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a transition event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.TransitionEvent) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		TenantCode: event.TenantCode,
		InstanceID: event.InstanceID.Hex(),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		FromState:  event.FromState,
		ToState:    event.ToState,
		Event:      event.Event,
		Operator:   event.Operator,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}

// EnqueueBackfill schedules an async repair pass for the given tenant.
func (p *Publisher) EnqueueBackfill(ctx context.Context, tenantCode, workflowCode string) error {
	_, err := p.client.Insert(ctx, BackfillJobArgs{
		TenantCode:   tenantCode,
		WorkflowCode: workflowCode,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing backfill job: %w", err)
	}
	return nil
}
