package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/workflowiq/internal/adapter/fsm"
	"github.com/neomorfeo/workflowiq/internal/adapter/sqlite"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

func newDefinitionStore(t *testing.T) *sqlite.DefinitionStore {
	t.Helper()
	router, _ := newTestRouter(t)
	return sqlite.NewDefinitionStore(router.System(), fsm.New())
}

func basicOrderDefinition() *domain.Definition {
	return &domain.Definition{
		Code: "basic_order",
		Name: "Basic order workflow",
		States: []domain.State{
			{Code: "draft", Name: "Draft", Type: domain.StateTypeStart},
			{Code: "ordered", Name: "Ordered", Type: domain.StateTypeNormal},
			{Code: "production", Name: "In production", Type: domain.StateTypeNormal},
			{Code: "completed", Name: "Completed", Type: domain.StateTypeEnd},
			{Code: "cancelled", Name: "Cancelled", Type: domain.StateTypeEnd},
		},
		Transitions: []domain.Transition{
			{
				ID: "t1", Name: "Submit order", FromState: "draft", ToState: "ordered", Event: "submit_order",
				Actions: []domain.Action{{Type: domain.ActionUpdateField, Field: "status", Value: 1}},
			},
			{ID: "t2", Name: "Start production", FromState: "ordered", ToState: "production", Event: "start_production"},
			{ID: "t3", Name: "Complete", FromState: "production", ToState: "completed", Event: "complete"},
			{ID: "t4", Name: "Cancel", FromState: "draft", ToState: "cancelled", Event: "cancel"},
			{ID: "t5", Name: "Cancel", FromState: "ordered", ToState: "cancelled", Event: "cancel"},
		},
	}
}

func TestDefinitionStore_CreateAndGetActive(t *testing.T) {
	store := newDefinitionStore(t)
	ctx := context.Background()

	def := basicOrderDefinition()
	def.IsActive = true
	if err := store.Create(ctx, def); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if def.ID.IsZero() {
		t.Fatal("Create should assign an id")
	}

	got, err := store.GetActive(ctx, "basic_order")
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if got.ID != def.ID {
		t.Errorf("ID = %v, want %v", got.ID, def.ID)
	}
	if len(got.States) != 5 || len(got.Transitions) != 5 {
		t.Errorf("decoded %d states / %d transitions, want 5/5", len(got.States), len(got.Transitions))
	}
	if got.Transitions[0].Actions[0].Type != domain.ActionUpdateField {
		t.Errorf("first action = %v, want update_field", got.Transitions[0].Actions[0])
	}
}

func TestDefinitionStore_GetActive_NoneActive(t *testing.T) {
	store := newDefinitionStore(t)
	ctx := context.Background()

	def := basicOrderDefinition()
	if err := store.Create(ctx, def); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.GetActive(ctx, "basic_order")
	var noActive *domain.NoActiveDefinitionError
	if !errors.As(err, &noActive) {
		t.Fatalf("expected NoActiveDefinitionError, got %v", err)
	}
}

func TestDefinitionStore_SecondActiveRejectedOnWrite(t *testing.T) {
	store := newDefinitionStore(t)
	ctx := context.Background()

	first := basicOrderDefinition()
	first.IsActive = true
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	second := basicOrderDefinition()
	second.IsActive = true
	second.Version = 2
	err := store.Create(ctx, second)
	var ambiguous *domain.AmbiguousDefinitionError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousDefinitionError on write, got %v", err)
	}
}

func TestDefinitionStore_ActivateSupersedes(t *testing.T) {
	store := newDefinitionStore(t)
	ctx := context.Background()

	v1 := basicOrderDefinition()
	v1.IsActive = true
	if err := store.Create(ctx, v1); err != nil {
		t.Fatalf("Create v1 failed: %v", err)
	}

	v2 := basicOrderDefinition()
	v2.Version = 2
	if err := store.Create(ctx, v2); err != nil {
		t.Fatalf("Create v2 failed: %v", err)
	}

	if err := store.Activate(ctx, v2.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	active, err := store.GetActive(ctx, "basic_order")
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active.ID != v2.ID {
		t.Errorf("active = %v, want v2 %v", active.ID, v2.ID)
	}

	// v1 remains for audit, deactivated.
	old, err := store.GetByID(ctx, v1.ID)
	if err != nil {
		t.Fatalf("GetByID(v1) failed: %v", err)
	}
	if old.IsActive {
		t.Error("superseded version should be inactive")
	}
}

func TestDefinitionStore_GetByID_HexForm(t *testing.T) {
	store := newDefinitionStore(t)
	ctx := context.Background()

	def := basicOrderDefinition()
	if err := store.Create(ctx, def); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Normalizing the hex rendering must find the binary-stored row.
	id, err := domain.ParseID(def.ID.Hex())
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID via hex failed: %v", err)
	}
	if got.Code != "basic_order" {
		t.Errorf("Code = %q, want %q", got.Code, "basic_order")
	}
}

func TestDefinitionStore_GetByID_NotFound(t *testing.T) {
	store := newDefinitionStore(t)

	id, _ := domain.NewID()
	_, err := store.GetByID(context.Background(), id)
	if !errors.Is(err, domain.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
	}
}

func TestDefinitionStore_CreateRejectsBrokenDefinition(t *testing.T) {
	store := newDefinitionStore(t)

	def := basicOrderDefinition()
	def.Transitions[0].ToState = "nowhere"
	err := store.Create(context.Background(), def)
	var invalid *domain.InvalidDefinitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDefinitionError, got %v", err)
	}
}
