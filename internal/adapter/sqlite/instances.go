package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: InstanceStore implements domain.InstanceStore.
var _ domain.InstanceStore = (*InstanceStore)(nil)

// InstanceStore keeps workflow instances in the tenant database resolved
// from each call's context. Definitions referenced by an instance live in
// the system database; resolving them is the caller's separate step.
type InstanceStore struct {
	router *Router
}

// NewInstanceStore creates a tenant-scoped instance store.
func NewInstanceStore(router *Router) *InstanceStore {
	return &InstanceStore{router: router}
}

func (s *InstanceStore) Get(ctx context.Context, id domain.ID) (*domain.Instance, error) {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	bin, hex := idArgs(id)
	row := db.QueryRowContext(ctx,
		`SELECT id, workflow_id, entity_type, entity_id, current_state, variables, version, created_at, updated_at
		 FROM workflow_instances WHERE id IN (?, ?)`, bin, hex,
	)

	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}

	if err := s.loadHistory(ctx, db, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *InstanceStore) GetByEntity(ctx context.Context, entityType, entityID string) (*domain.Instance, error) {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, workflow_id, entity_type, entity_id, current_state, variables, version, created_at, updated_at
		 FROM workflow_instances WHERE entity_type = ? AND entity_id = ?`, entityType, entityID,
	)

	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}

	if err := s.loadHistory(ctx, db, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Create inserts the instance and its synthetic init history entry in one
// transaction.
func (s *InstanceStore) Create(ctx context.Context, inst *domain.Instance) error {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return err
	}

	variables, err := marshalJSON(inst.Variables)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning create tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_instances (id, workflow_id, entity_type, entity_id, current_state, variables, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID.Bytes(), inst.WorkflowID.Bytes(), inst.EntityType, inst.EntityID,
		inst.CurrentState, variables, inst.Version,
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity %s/%s already has an instance: %w", inst.EntityType, inst.EntityID, err)
		}
		return fmt.Errorf("inserting instance: %w", err)
	}

	for i, entry := range inst.History {
		if err := insertHistory(ctx, tx, inst.ID, int64(i+1), entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Append applies one transition as a single logical write: bump the version
// under an optimistic check, move current_state, merge variables, and add
// the history entry. A concurrent writer that got there first leaves the
// version stale and this call fails with ErrConcurrentModification; the
// caller reloads and retries. No partial update is ever visible.
func (s *InstanceStore) Append(ctx context.Context, id domain.ID, version int64, entry domain.HistoryEntry, newState string, variables map[string]any) (*domain.Instance, error) {
	db, err := s.router.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	varsJSON, err := marshalJSON(variables)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning append tx: %w", err)
	}
	defer tx.Rollback()

	bin, hex := idArgs(id)
	result, err := tx.ExecContext(ctx,
		`UPDATE workflow_instances
		 SET current_state = ?, variables = ?, version = version + 1, updated_at = ?
		 WHERE id IN (?, ?) AND version = ?`,
		newState, varsJSON, formatTime(entry.Timestamp), bin, hex, version,
	)
	if err != nil {
		return nil, fmt.Errorf("updating instance state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM workflow_instances WHERE id IN (?, ?)`, bin, hex,
		).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.ErrInstanceNotFound
			}
			return nil, fmt.Errorf("checking instance existence: %w", err)
		}
		return nil, domain.ErrConcurrentModification
	}

	if err := insertHistory(ctx, tx, id, version+1, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing append: %w", err)
	}

	return s.Get(ctx, id)
}

func insertHistory(ctx context.Context, tx *sql.Tx, instanceID domain.ID, seq int64, entry domain.HistoryEntry) error {
	metadata, err := marshalJSON(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_history (instance_id, seq, from_state, to_state, event, operator, reason, timestamp, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		instanceID.Bytes(), seq, entry.FromState, entry.ToState, entry.Event,
		entry.Operator, entry.Reason, formatTime(entry.Timestamp), metadata,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

func (s *InstanceStore) loadHistory(ctx context.Context, db *sql.DB, inst *domain.Instance) error {
	bin, hex := idArgs(inst.ID)
	rows, err := db.QueryContext(ctx,
		`SELECT from_state, to_state, event, operator, reason, timestamp, metadata
		 FROM workflow_history WHERE instance_id IN (?, ?) ORDER BY seq`, bin, hex,
	)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var history []domain.HistoryEntry
	for rows.Next() {
		var (
			entry     domain.HistoryEntry
			timestamp string
			metadata  sql.NullString
		)
		if err := rows.Scan(&entry.FromState, &entry.ToState, &entry.Event,
			&entry.Operator, &entry.Reason, &timestamp, &metadata); err != nil {
			return fmt.Errorf("scanning history entry: %w", err)
		}
		entry.Timestamp = parseTime(timestamp)
		if metadata.Valid {
			if err := unmarshalJSON(metadata.String, &entry.Metadata); err != nil {
				return err
			}
		}
		history = append(history, entry)
	}
	inst.History = history
	return rows.Err()
}

func scanInstance(row rowScanner) (*domain.Instance, error) {
	var (
		inst                 domain.Instance
		rawID, rawWorkflowID []byte
		variables            string
		createdAt, updatedAt string
	)

	err := row.Scan(&rawID, &rawWorkflowID, &inst.EntityType, &inst.EntityID,
		&inst.CurrentState, &variables, &inst.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning instance: %w", err)
	}

	id, err := scanID(rawID)
	if err != nil {
		return nil, err
	}
	workflowID, err := scanID(rawWorkflowID)
	if err != nil {
		return nil, err
	}

	inst.ID = id
	inst.WorkflowID = workflowID
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	inst.Variables = make(map[string]any)
	if err := unmarshalJSON(variables, &inst.Variables); err != nil {
		return nil, err
	}

	return &inst, nil
}
