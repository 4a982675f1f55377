// Package fsm validates workflow definitions by compiling them into a
// looplab/fsm state machine. Structural problems surface here, at write or
// load time, instead of as runtime transition failures.
package fsm

import (
	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: Validator implements domain.DefinitionValidator.
var _ domain.DefinitionValidator = (*Validator)(nil)

// Validator checks that a definition compiles into a runnable machine.
type Validator struct{}

// New creates a definition validator.
func New() *Validator {
	return &Validator{}
}

// Check runs the domain's structural validation, compiles the transitions
// into an FSM, and walks the machine from the start state to find states
// unreachable by any event path.
func (v *Validator) Check(def *domain.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	start, err := def.StartState()
	if err != nil {
		return err
	}

	events := buildEvents(def)

	reachable := map[string]bool{start.Code: true}
	frontier := []string{start.Code}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		machine := loopfsm.NewFSM(current, events, nil)
		for _, dst := range destinations(machine, def, current) {
			if !reachable[dst] {
				reachable[dst] = true
				frontier = append(frontier, dst)
			}
		}
	}

	for _, s := range def.States {
		if !reachable[s.Code] {
			return &domain.InvalidDefinitionError{
				Code:   def.Code,
				Reason: "state " + s.Code + " is unreachable from the start state",
			}
		}
	}

	return nil
}

// buildEvents converts the definition's transitions into looplab/fsm
// EventDesc format, consolidating transitions with the same event and
// destination into a single EventDesc with multiple source states.
func buildEvents(def *domain.Definition) []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range def.Transitions {
		k := key{event: t.Event, dst: t.ToState}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], t.FromState)
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// destinations returns the states reachable in one step from current,
// using the machine's view of available events cross-checked against the
// declared transitions.
func destinations(machine *loopfsm.FSM, def *domain.Definition, current string) []string {
	var out []string
	for _, event := range machine.AvailableTransitions() {
		for _, t := range def.Transitions {
			if t.FromState == current && t.Event == event {
				out = append(out, t.ToState)
			}
		}
	}
	return out
}
