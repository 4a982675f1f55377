package fsm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/neomorfeo/workflowiq/internal/adapter/fsm"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

func definition() *domain.Definition {
	return &domain.Definition{
		Code: "basic_order",
		States: []domain.State{
			{Code: "draft", Type: domain.StateTypeStart},
			{Code: "ordered", Type: domain.StateTypeNormal},
			{Code: "production", Type: domain.StateTypeNormal},
			{Code: "completed", Type: domain.StateTypeEnd},
			{Code: "cancelled", Type: domain.StateTypeEnd},
		},
		Transitions: []domain.Transition{
			{ID: "t1", FromState: "draft", ToState: "ordered", Event: "submit_order"},
			{ID: "t2", FromState: "ordered", ToState: "production", Event: "start_production"},
			{ID: "t3", FromState: "production", ToState: "completed", Event: "complete"},
			{ID: "t4", FromState: "draft", ToState: "cancelled", Event: "cancel"},
			{ID: "t5", FromState: "ordered", ToState: "cancelled", Event: "cancel"},
		},
	}
}

func TestCheck_ValidDefinition(t *testing.T) {
	if err := fsm.New().Check(definition()); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestCheck_StructurallyBroken(t *testing.T) {
	def := definition()
	def.Transitions[0].ToState = "nowhere"

	err := fsm.New().Check(def)
	var invalid *domain.InvalidDefinitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDefinitionError, got %v", err)
	}
}

func TestCheck_UnreachableState(t *testing.T) {
	def := definition()
	def.States = append(def.States, domain.State{Code: "quality_check", Type: domain.StateTypeNormal})

	err := fsm.New().Check(def)
	var invalid *domain.InvalidDefinitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDefinitionError, got %v", err)
	}
	if !strings.Contains(invalid.Reason, "quality_check") {
		t.Errorf("reason = %q, want it to name the unreachable state", invalid.Reason)
	}
}

func TestCheck_TerminalStatesNeedNoExit(t *testing.T) {
	// End states without outgoing transitions are fine.
	def := definition()
	if err := fsm.New().Check(def); err != nil {
		t.Fatalf("end states without exits should pass: %v", err)
	}
}
