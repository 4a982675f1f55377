package domain

import "time"

// EntityTypeOrder is the entity type recorded on instances attached to orders.
const EntityTypeOrder = "order"

// Order is the business entity driven by the workflow. It lives in the
// tenant database. The three workflow fields are a denormalized cache of
// the owning instance; the instance is authoritative and the backfill
// procedure is the corrective path when they drift.
type Order struct {
	ID         ID
	ContractNo string
	Status     int // legacy numeric status, mirrored from the workflow state
	Quantity   int
	Progress   float64

	WorkflowCode     string
	WorkflowInstance string // hex reference to the instance id; may be stale or malformed in legacy data
	WorkflowState    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields returns the order fields guard conditions may reference, keyed the
// way definitions name them.
func (o *Order) Fields() map[string]any {
	return map[string]any{
		"order_id":    o.ID.Hex(),
		"contract_no": o.ContractNo,
		"status":      o.Status,
		"quantity":    o.Quantity,
		"progress":    o.Progress,
	}
}
