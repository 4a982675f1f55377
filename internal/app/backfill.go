package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// DefaultWorkflowCode is assumed for legacy orders that predate the
// workflow_code column.
const DefaultWorkflowCode = "basic_order"

// ReasonBackfill tags history entries created by repair rather than by a
// fired event.
const ReasonBackfill = "backfill: instance rebuilt from legacy status"

const backfillBatchSize = 200

// BackfillReport summarizes one backfill run.
type BackfillReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Backfill walks every order in the tenant scope and ensures each one has a
// live, consistent instance. Orders with a healthy instance are only
// resynced when their mirrored fields drifted; orders without one get a
// fresh instance seeded from the legacy status. The operation is
// idempotent: a second run over a repaired tenant reports zero repairs.
func (s *WorkflowService) Backfill(ctx context.Context, workflowCode string) (*BackfillReport, error) {
	if workflowCode == "" {
		workflowCode = DefaultWorkflowCode
	}

	report := &BackfillReport{}
	offset := 0
	for {
		batch, err := s.orders.List(ctx, backfillBatchSize, offset)
		if err != nil {
			return report, fmt.Errorf("listing orders: %w", err)
		}
		if len(batch) == 0 {
			return report, nil
		}
		offset += len(batch)

		for _, order := range batch {
			report.Scanned++
			repaired, err := s.backfillOrder(ctx, order, workflowCode)
			if err != nil {
				report.Failed++
				s.logger.ErrorContext(ctx, "backfill failed for order",
					"order", order.ID.Hex(),
					"error", err,
				)
				continue
			}
			if repaired {
				report.Repaired++
			} else {
				report.Skipped++
			}
		}
	}
}

// backfillOrder repairs a single order. It reports whether anything was
// written.
func (s *WorkflowService) backfillOrder(ctx context.Context, order *domain.Order, workflowCode string) (bool, error) {
	if inst, ok := s.resolveInstance(ctx, order); ok {
		if orderInSync(order, inst) {
			return false, nil
		}
		// Instance is healthy but the order lost or corrupted its mirror.
		if err := s.syncOrder(ctx, order.ID, order.WorkflowCode, inst, nil); err != nil {
			return false, err
		}
		return true, nil
	}

	_, err := s.repairOrder(ctx, order, workflowCode)
	if err != nil {
		return false, err
	}
	return true, nil
}

// repairOrder creates a new instance for an order that has none, seeding
// the current state from the legacy numeric status. The synthetic init
// entry carries the backfill reason so repaired instances stay
// distinguishable from organically created ones.
func (s *WorkflowService) repairOrder(ctx context.Context, order *domain.Order, workflowCode string) (*domain.Instance, error) {
	if workflowCode == "" {
		workflowCode = order.WorkflowCode
	}
	if workflowCode == "" {
		workflowCode = DefaultWorkflowCode
	}

	def, err := s.definitions.GetActive(ctx, workflowCode)
	if err != nil {
		return nil, err
	}

	seed := domain.ToStateCode(order.Status)
	if !def.HasState(seed) {
		start, err := def.StartState()
		if err != nil {
			return nil, err
		}
		seed = start.Code
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	inst := domain.NewInstance(id, def.ID, domain.EntityTypeOrder, order.ID.Hex(), seed, ReasonBackfill, s.now())
	if err := s.instances.Create(ctx, &inst); err != nil {
		return nil, fmt.Errorf("creating repaired instance: %w", err)
	}

	if err := s.syncOrder(ctx, order.ID, def.Code, &inst, nil); err != nil {
		return nil, err
	}

	return &inst, nil
}

// orderInSync reports whether the order's mirrored fields agree with the
// instance.
func orderInSync(order *domain.Order, inst *domain.Instance) bool {
	if order.WorkflowInstance != inst.ID.Hex() {
		return false
	}
	if order.WorkflowState != inst.CurrentState {
		return false
	}
	if legacy, ok := domain.ToLegacyStatus(inst.CurrentState); ok && order.Status != legacy {
		return false
	}
	return true
}
