package domain

import (
	"fmt"
	"time"
)

// StateType classifies a state within a workflow definition.
type StateType string

const (
	StateTypeStart  StateType = "start"
	StateTypeNormal StateType = "normal"
	StateTypeEnd    StateType = "end"
)

// ConditionOperator enumerates the comparison operators a guard condition
// may use. Anything outside this set is rejected at definition load time.
type ConditionOperator string

const (
	OpEqual          ConditionOperator = "eq"
	OpNotEqual       ConditionOperator = "ne"
	OpGreater        ConditionOperator = "gt"
	OpGreaterOrEqual ConditionOperator = "gte"
	OpLess           ConditionOperator = "lt"
	OpLessOrEqual    ConditionOperator = "lte"
)

// ActionType enumerates the side effects a transition may request. Actions
// are executed by the entity layer, never by the engine itself.
type ActionType string

const (
	ActionUpdateField ActionType = "update_field"
	ActionNotify      ActionType = "notify"
	ActionWebhook     ActionType = "webhook"
)

// State is one declared state of a workflow definition.
type State struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Type        StateType      `json:"type"`
	Color       string         `json:"color,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Condition is a guard predicate evaluated against the merged entity fields
// and request variables before a transition is allowed.
type Condition struct {
	Field       string            `json:"field"`
	Operator    ConditionOperator `json:"operator"`
	Value       any               `json:"value"`
	Description string            `json:"description,omitempty"`
}

// DisplayName returns the condition's description, falling back to a
// field/operator rendering so rejections always name the failing guard.
func (c Condition) DisplayName() string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// Action is one side effect requested by a transition, emitted to the
// entity layer in declaration order.
type Action struct {
	Type        ActionType `json:"type"`
	Field       string     `json:"field,omitempty"`
	Value       any        `json:"value,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Transition is a definition-declared edge between two states, triggered
// by a named event and gated by conditions and an optional role.
type Transition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	FromState    string         `json:"from_state"`
	ToState      string         `json:"to_state"`
	Event        string         `json:"event"`
	Conditions   []Condition    `json:"conditions,omitempty"`
	Actions      []Action       `json:"actions,omitempty"`
	RequiredRole string         `json:"required_role,omitempty"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Definition is a versioned, globally shared workflow description. It lives
// only in the system database; tenants consume it read-only.
type Definition struct {
	ID          ID             `json:"id"`
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     int            `json:"version"`
	IsActive    bool           `json:"is_active"`
	States      []State        `json:"states"`
	Transitions []Transition   `json:"transitions"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StartState returns the definition's single start state.
func (d *Definition) StartState() (State, error) {
	for _, s := range d.States {
		if s.Type == StateTypeStart {
			return s, nil
		}
	}
	return State{}, &InvalidDefinitionError{Code: d.Code, Reason: "no start state"}
}

// HasState reports whether code names a declared state.
func (d *Definition) HasState(code string) bool {
	for _, s := range d.States {
		if s.Code == code {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the transitions leaving the given state, in
// declaration order.
func (d *Definition) TransitionsFrom(state string) []Transition {
	var out []Transition
	for _, t := range d.Transitions {
		if t.FromState == state {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks the structural invariants the engine relies on: exactly
// one start state, unique state codes, transitions referencing declared
// states, and enumerated operator/action types. Definitions that fail here
// are rejected on write rather than detected at transition time.
func (d *Definition) Validate() error {
	if d.Code == "" {
		return &InvalidDefinitionError{Code: d.Code, Reason: "empty code"}
	}
	if len(d.States) == 0 {
		return &InvalidDefinitionError{Code: d.Code, Reason: "no states declared"}
	}

	seen := make(map[string]bool, len(d.States))
	starts := 0
	for _, s := range d.States {
		if s.Code == "" {
			return &InvalidDefinitionError{Code: d.Code, Reason: "state with empty code"}
		}
		if seen[s.Code] {
			return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("duplicate state code %q", s.Code)}
		}
		seen[s.Code] = true

		switch s.Type {
		case StateTypeStart:
			starts++
		case StateTypeNormal, StateTypeEnd:
		default:
			return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("state %q has unknown type %q", s.Code, s.Type)}
		}
	}
	if starts != 1 {
		return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("%d start states, want exactly 1", starts)}
	}

	for _, t := range d.Transitions {
		if t.Event == "" {
			return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("transition %q has empty event", t.ID)}
		}
		if !seen[t.FromState] {
			return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("transition %q references undeclared from_state %q", t.ID, t.FromState)}
		}
		if !seen[t.ToState] {
			return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("transition %q references undeclared to_state %q", t.ID, t.ToState)}
		}
		for _, c := range t.Conditions {
			switch c.Operator {
			case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
			default:
				return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("transition %q condition on %q has unknown operator %q", t.ID, c.Field, c.Operator)}
			}
		}
		for _, a := range t.Actions {
			switch a.Type {
			case ActionUpdateField, ActionNotify, ActionWebhook:
			default:
				return &InvalidDefinitionError{Code: d.Code, Reason: fmt.Sprintf("transition %q has unknown action type %q", t.ID, a.Type)}
			}
		}
	}

	return nil
}
