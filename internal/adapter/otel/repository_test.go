package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/workflowiq/internal/adapter/otel"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock store ---

type mockStore struct {
	instances map[domain.ID]*domain.Instance
}

func newMockStore() *mockStore {
	return &mockStore{instances: make(map[domain.ID]*domain.Instance)}
}

func (m *mockStore) Get(_ context.Context, id domain.ID) (*domain.Instance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return inst, nil
}

func (m *mockStore) GetByEntity(_ context.Context, entityType, entityID string) (*domain.Instance, error) {
	for _, inst := range m.instances {
		if inst.EntityType == entityType && inst.EntityID == entityID {
			return inst, nil
		}
	}
	return nil, domain.ErrInstanceNotFound
}

func (m *mockStore) Create(_ context.Context, inst *domain.Instance) error {
	m.instances[inst.ID] = inst
	return nil
}

func (m *mockStore) Append(_ context.Context, id domain.ID, version int64, entry domain.HistoryEntry, newState string, variables map[string]any) (*domain.Instance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	if inst.Version != version {
		return nil, domain.ErrConcurrentModification
	}
	inst.History = append(inst.History, entry)
	inst.CurrentState = newState
	inst.Version++
	return inst, nil
}

func seedInstance(m *mockStore) *domain.Instance {
	id, _ := domain.NewID()
	wfID, _ := domain.NewID()
	inst := domain.NewInstance(id, wfID, "order", "o-1", "draft", "", time.Now().UTC())
	m.instances[inst.ID] = &inst
	return &inst
}

// --- Tests ---

func TestTracingInstanceStore_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockStore()
	store := adapter.NewTracingInstanceStore(inner)

	id, _ := domain.NewID()
	wfID, _ := domain.NewID()
	inst := domain.NewInstance(id, wfID, "order", "o-1", "draft", "", time.Now().UTC())
	ctx := domain.WithTenant(context.Background(), "acme")
	if err := store.Create(ctx, &inst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "InstanceStore.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "InstanceStore.Create")
	}

	assertAttribute(t, spans[0], "tenant.code", "acme")
	assertAttribute(t, spans[0], "instance.state", "draft")
}

func TestTracingInstanceStore_Get_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockStore()
	store := adapter.NewTracingInstanceStore(inner)

	id, _ := domain.NewID()
	_, err := store.Get(context.Background(), id)
	if !errors.Is(err, domain.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}

	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingInstanceStore_GetByEntity_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockStore()
	store := adapter.NewTracingInstanceStore(inner)

	want := seedInstance(inner)

	got, err := store.GetByEntity(context.Background(), "order", "o-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %v, want %v", got.ID, want.ID)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "entity.type", "order")
	assertAttribute(t, spans[0], "entity.id", "o-1")
}

func TestTracingInstanceStore_Append_RecordsResultVersion(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockStore()
	store := adapter.NewTracingInstanceStore(inner)

	inst := seedInstance(inner)

	entry := domain.HistoryEntry{
		FromState: "draft",
		ToState:   "ordered",
		Event:     "submit_order",
		Operator:  "alice",
		Timestamp: time.Now().UTC(),
	}
	got, err := store.Append(context.Background(), inst.ID, 1, entry, "ordered", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "InstanceStore.Append" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "InstanceStore.Append")
	}

	assertAttribute(t, spans[0], "transition.event", "submit_order")
	assertAttribute(t, spans[0], "result.version", "2")
}

func TestTracingInstanceStore_Append_RecordsConflict(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockStore()
	store := adapter.NewTracingInstanceStore(inner)

	inst := seedInstance(inner)

	entry := domain.HistoryEntry{FromState: "draft", ToState: "ordered", Event: "submit_order"}
	_, err := store.Append(context.Background(), inst.ID, 99, entry, "ordered", nil)
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
