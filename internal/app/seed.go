package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// BasicOrderDefinition returns the built-in order lifecycle: draft orders
// are submitted, produced, and completed, with cancellation allowed before
// production finishes.
func BasicOrderDefinition() *domain.Definition {
	return &domain.Definition{
		Code:        DefaultWorkflowCode,
		Name:        "Basic Order Workflow",
		Description: "Standard order lifecycle from draft to completion",
		States: []domain.State{
			{Code: "draft", Name: "Draft", Type: domain.StateTypeStart},
			{Code: "ordered", Name: "Ordered", Type: domain.StateTypeNormal},
			{Code: "production", Name: "In Production", Type: domain.StateTypeNormal},
			{Code: "completed", Name: "Completed", Type: domain.StateTypeEnd},
			{Code: "cancelled", Name: "Cancelled", Type: domain.StateTypeEnd},
		},
		Transitions: []domain.Transition{
			{
				ID:        "t_submit",
				Name:      "Submit Order",
				FromState: "draft",
				ToState:   "ordered",
				Event:     "submit_order",
				Conditions: []domain.Condition{
					{Field: "quantity", Operator: domain.OpGreater, Value: 0, Description: "quantity positive"},
				},
			},
			{
				ID:        "t_start_production",
				Name:      "Start Production",
				FromState: "ordered",
				ToState:   "production",
				Event:     "start_production",
			},
			{
				ID:        "t_complete",
				Name:      "Complete Order",
				FromState: "production",
				ToState:   "completed",
				Event:     "complete",
				Conditions: []domain.Condition{
					{Field: "progress", Operator: domain.OpGreaterOrEqual, Value: 100, Description: "production finished"},
				},
				Actions: []domain.Action{
					{Type: domain.ActionNotify, Value: "order completed", Description: "notify order owner"},
				},
			},
			{
				ID:        "t_cancel_draft",
				Name:      "Cancel Draft",
				FromState: "draft",
				ToState:   "cancelled",
				Event:     "cancel",
				Actions: []domain.Action{
					{Type: domain.ActionUpdateField, Field: "progress", Value: 0},
				},
			},
			{
				ID:           "t_cancel_ordered",
				Name:         "Cancel Ordered",
				FromState:    "ordered",
				ToState:      "cancelled",
				Event:        "cancel",
				RequiredRole: "supervisor",
			},
		},
	}
}

// SeedDefinitions installs the built-in definition when no active revision
// of it exists yet. Safe to run on every startup.
func SeedDefinitions(ctx context.Context, store domain.DefinitionStore) error {
	_, err := store.GetActive(ctx, DefaultWorkflowCode)
	if err == nil {
		return nil
	}
	var missing *domain.NoActiveDefinitionError
	if !errors.As(err, &missing) {
		return fmt.Errorf("checking for seed definition: %w", err)
	}

	def := BasicOrderDefinition()
	def.IsActive = true
	if err := store.Create(ctx, def); err != nil {
		return fmt.Errorf("seeding definition: %w", err)
	}
	return nil
}
