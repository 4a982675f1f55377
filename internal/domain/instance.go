package domain

import "time"

// EventInit is the synthetic event recorded as the first history entry of
// every instance, carrying the seed state.
const EventInit = "init"

// OperatorSystem is recorded as the operator when no acting user is known.
const OperatorSystem = "system"

// HistoryEntry is one immutable record of a state change. History is only
// ever appended, never mutated.
type HistoryEntry struct {
	FromState string         `json:"from_state"`
	ToState   string         `json:"to_state"`
	Event     string         `json:"event"`
	Operator  string         `json:"operator"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Instance is the live state of one definition applied to one entity. It
// lives in the tenant database owning the entity; the referenced definition
// lives in the system database and is resolved in a separate step.
type Instance struct {
	ID           ID             `json:"id"`
	WorkflowID   ID             `json:"workflow_id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	CurrentState string         `json:"current_state"`
	Variables    map[string]any `json:"variables"`
	History      []HistoryEntry `json:"history"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewInstance builds an unsaved instance seeded at the given state, with
// the synthetic init entry as its entire history.
func NewInstance(id, workflowID ID, entityType, entityID, seedState, reason string, now time.Time) Instance {
	return Instance{
		ID:           id,
		WorkflowID:   workflowID,
		EntityType:   entityType,
		EntityID:     entityID,
		CurrentState: seedState,
		Variables:    make(map[string]any),
		History: []HistoryEntry{{
			FromState: "",
			ToState:   seedState,
			Event:     EventInit,
			Operator:  OperatorSystem,
			Reason:    reason,
			Timestamp: now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Consistent reports whether current_state matches the last history entry,
// the invariant every stored instance must hold.
func (i *Instance) Consistent() bool {
	if len(i.History) == 0 {
		return false
	}
	return i.CurrentState == i.History[len(i.History)-1].ToState
}
