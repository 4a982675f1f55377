package domain

import (
	"fmt"
	"time"
)

// FireRequest carries one transition attempt into the engine.
type FireRequest struct {
	Event     string
	Actor     Actor
	Reason    string
	Variables map[string]any // request-scoped variables, merged over entity fields for guards
	Fields    map[string]any // entity fields visible to guard conditions
	Now       time.Time
}

// FireResult is the engine's output: the chosen transition, the new state,
// the history entry to append, and the ordered side effects for the entity
// layer. The engine mutates nothing itself.
type FireResult struct {
	Transition Transition
	NewState   string
	Entry      HistoryEntry
	Actions    []Action
	// Ambiguous is set when more than one transition matched and the first
	// by declaration order was chosen. A defect in the definition, not in
	// the request; the caller logs it and proceeds.
	Ambiguous bool
}

// Fire computes the transition for the given event against the instance's
// current state. It is deterministic and holds no internal state: identical
// (definition, current state, event, fields, variables, actor) inputs yield
// identical results.
func Fire(def *Definition, inst *Instance, req FireRequest) (*FireResult, error) {
	var candidates []Transition
	for _, t := range def.Transitions {
		if t.FromState == inst.CurrentState && t.Event == req.Event {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		return nil, &NoMatchingTransitionError{State: inst.CurrentState, Event: req.Event}
	}

	// Declaration order breaks ties so a mis-modeled definition still makes
	// forward progress.
	chosen := candidates[0]

	guardData := guardContext(inst, req)
	for _, cond := range chosen.Conditions {
		if !evalCondition(cond, guardData) {
			return nil, &ConditionNotMetError{Transition: chosen.Name, Condition: cond.DisplayName()}
		}
	}

	if chosen.RequiredRole != "" && !req.Actor.HasRole(chosen.RequiredRole) {
		return nil, &ForbiddenError{Transition: chosen.Name, RequiredRole: chosen.RequiredRole}
	}

	entry := HistoryEntry{
		FromState: inst.CurrentState,
		ToState:   chosen.ToState,
		Event:     req.Event,
		Operator:  req.Actor.Operator(),
		Reason:    req.Reason,
		Timestamp: req.Now,
		Metadata:  req.Variables,
	}

	return &FireResult{
		Transition: chosen,
		NewState:   chosen.ToState,
		Entry:      entry,
		Actions:    chosen.Actions,
		Ambiguous:  len(candidates) > 1,
	}, nil
}

// guardContext merges entity fields, accumulated instance variables, and
// request variables, later sources winning.
func guardContext(inst *Instance, req FireRequest) map[string]any {
	data := make(map[string]any, len(req.Fields)+len(inst.Variables)+len(req.Variables))
	for k, v := range req.Fields {
		data[k] = v
	}
	for k, v := range inst.Variables {
		data[k] = v
	}
	for k, v := range req.Variables {
		data[k] = v
	}
	return data
}

func evalCondition(cond Condition, data map[string]any) bool {
	actual, ok := data[cond.Field]
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEqual:
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", cond.Value)
	case OpNotEqual:
		return fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", cond.Value)
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		a, aok := toFloat(actual)
		e, eok := toFloat(cond.Value)
		if !aok || !eok {
			return false
		}
		switch cond.Operator {
		case OpGreater:
			return a > e
		case OpGreaterOrEqual:
			return a >= e
		case OpLess:
			return a < e
		default:
			return a <= e
		}
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
