package domain

import "context"

// DefinitionStore is the read-mostly repository of workflow definitions.
// It deliberately takes no tenant parameter: definitions are global and
// always resolve through the system database. Resolving them through a
// tenant handle is the bug class this interface exists to prevent.
type DefinitionStore interface {
	Create(ctx context.Context, def *Definition) error
	GetByID(ctx context.Context, id ID) (*Definition, error)
	GetActive(ctx context.Context, code string) (*Definition, error)
	Activate(ctx context.Context, id ID) error
	Deactivate(ctx context.Context, id ID) error
	List(ctx context.Context, limit, offset int) ([]*Definition, error)
}

// InstanceStore is the per-tenant repository of workflow instances. Every
// method resolves the tenant database from the context's tenant code.
type InstanceStore interface {
	Get(ctx context.Context, id ID) (*Instance, error)
	GetByEntity(ctx context.Context, entityType, entityID string) (*Instance, error)
	Create(ctx context.Context, inst *Instance) error
	// Append atomically appends one history entry and moves current_state,
	// guarded by the instance version. A stale version fails with
	// ErrConcurrentModification and the caller retries with a fresh load.
	Append(ctx context.Context, id ID, version int64, entry HistoryEntry, newState string, variables map[string]any) (*Instance, error)
}

// OrderStore is the entity-layer boundary the engine core reads identifiers
// and legacy status from, and writes mirrored fields and action results to.
type OrderStore interface {
	Get(ctx context.Context, id ID) (*Order, error)
	List(ctx context.Context, limit, offset int) ([]*Order, error)
	// UpdateWorkflowFields persists the denormalized workflow cache plus any
	// update_field action targets in one write.
	UpdateWorkflowFields(ctx context.Context, id ID, fields map[string]any) error
}

// TenantRegistry resolves tenant codes against the system database.
type TenantRegistry interface {
	GetByCode(ctx context.Context, code string) (*Tenant, error)
	Create(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}

// DefinitionValidator checks that a definition compiles into a runnable
// state machine before the store accepts it.
type DefinitionValidator interface {
	Check(def *Definition) error
}

// TransitionEvent is the snapshot published after a successful transition.
type TransitionEvent struct {
	TenantCode string
	InstanceID ID
	EntityType string
	EntityID   string
	FromState  string
	ToState    string
	Event      string
	Operator   string
}

// EventPublisher emits transition events for async consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}
