package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// OrderStore is the entity-layer adapter over the tenant database. The
// workflow core only reads identifiers and legacy status from it and
// writes back the mirrored fields and action results.
type OrderStore struct {
	router *Router
}

// NewOrderStore creates a tenant-scoped order store.
func NewOrderStore(router *Router) *OrderStore {
	return &OrderStore{router: router}
}

const orderColumns = `id, contract_no, status, quantity, progress, workflow_code, workflow_instance, workflow_state, created_at, updated_at`

// Create inserts an order. Exists for seeding and tests; order CRUD proper
// belongs to the entity layer outside this core.
func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.Bytes(), o.ContractNo, o.Status, o.Quantity, o.Progress,
		o.WorkflowCode, o.WorkflowInstance, o.WorkflowState,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id domain.ID) (*domain.Order, error) {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	bin, hex := idArgs(id)
	row := db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id IN (?, ?)`, bin, hex,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, contract_no`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// mirrorFields is the closed set of columns transition actions and the
// status mirror may write. Field names come from stored definitions, so
// they are matched against this list rather than spliced into SQL.
var mirrorFields = map[string]string{
	"status":            "status",
	"progress":          "progress",
	"quantity":          "quantity",
	"workflow_code":     "workflow_code",
	"workflow_instance": "workflow_instance",
	"workflow_state":    "workflow_state",
}

// UpdateWorkflowFields persists mirrored workflow fields and update_field
// action results in one write.
func (s *OrderStore) UpdateWorkflowFields(ctx context.Context, id domain.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	db, err := s.router.Resolve(ctx)
	if err != nil {
		return err
	}

	query := `UPDATE orders SET updated_at = ?`
	args := []any{formatTime(time.Now().UTC())}

	// Stable order keeps the statement deterministic for tracing.
	for _, col := range []string{"status", "progress", "quantity", "workflow_code", "workflow_instance", "workflow_state"} {
		for field, value := range fields {
			if mirrorFields[field] == col {
				query += `, ` + col + ` = ?`
				args = append(args, value)
			}
		}
	}
	for field := range fields {
		if _, ok := mirrorFields[field]; !ok {
			return fmt.Errorf("field %q is not writable by workflow actions", field)
		}
	}

	bin, hex := idArgs(id)
	query += ` WHERE id IN (?, ?)`
	args = append(args, bin, hex)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating order workflow fields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		rawID                []byte
		createdAt, updatedAt string
	)

	err := row.Scan(&rawID, &o.ContractNo, &o.Status, &o.Quantity, &o.Progress,
		&o.WorkflowCode, &o.WorkflowInstance, &o.WorkflowState, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	id, err := scanID(rawID)
	if err != nil {
		return nil, err
	}
	o.ID = id
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}
