package domain

// Legacy numeric status values carried on orders. The workflow instance is
// authoritative; this field survives for callers that predate the engine.
const (
	StatusDraft      = 0
	StatusOrdered    = 1
	StatusProduction = 2
	StatusCompleted  = 3
	StatusCancelled  = 4
)

// stateToStatus is the fixed bidirectional mapping between workflow state
// codes and the legacy numeric status. Both directions are derived from
// this one table so the round-trip cannot drift.
var stateToStatus = map[string]int{
	"draft":      StatusDraft,
	"ordered":    StatusOrdered,
	"production": StatusProduction,
	"completed":  StatusCompleted,
	"cancelled":  StatusCancelled,
}

var statusToState = func() map[int]string {
	out := make(map[int]string, len(stateToStatus))
	for state, status := range stateToStatus {
		out[status] = state
	}
	return out
}()

// ToLegacyStatus maps a workflow state code to the legacy numeric status.
// Not every state has a legacy mapping; ok is false for unmapped states and
// the caller leaves the legacy field untouched.
func ToLegacyStatus(stateCode string) (int, bool) {
	status, ok := stateToStatus[stateCode]
	return status, ok
}

// ToStateCode maps a legacy numeric status to its workflow state code. Used
// to seed backfilled instances from pre-engine data; unknown values fall
// back to the draft state.
func ToStateCode(legacyStatus int) string {
	if state, ok := statusToState[legacyStatus]; ok {
		return state
	}
	return "draft"
}
