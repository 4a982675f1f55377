package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: DefinitionStore implements domain.DefinitionStore.
var _ domain.DefinitionStore = (*DefinitionStore)(nil)

// DefinitionStore holds workflow definitions in the system database. It
// takes the system handle directly, not the Router: definitions have no
// tenant scope, and a store that could accidentally be handed a tenant
// handle is the failure mode this constructor shape exists to rule out.
type DefinitionStore struct {
	db        *sql.DB
	validator domain.DefinitionValidator
}

// NewDefinitionStore wraps the system database handle. Every write is
// checked by the validator so broken definitions never reach storage.
func NewDefinitionStore(system *sql.DB, validator domain.DefinitionValidator) *DefinitionStore {
	return &DefinitionStore{db: system, validator: validator}
}

const definitionColumns = `id, code, name, description, version, is_active, states, transitions, metadata, created_at, updated_at`

func (s *DefinitionStore) Create(ctx context.Context, def *domain.Definition) error {
	if err := s.validator.Check(def); err != nil {
		return err
	}

	if def.ID.IsZero() {
		id, err := domain.NewID()
		if err != nil {
			return err
		}
		def.ID = id
	}
	if def.Version == 0 {
		def.Version = 1
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	states, err := marshalJSON(def.States)
	if err != nil {
		return err
	}
	transitions, err := marshalJSON(def.Transitions)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(def.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_definitions (`+definitionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID.Bytes(), def.Code, def.Name, def.Description, def.Version, boolToInt(def.IsActive),
		states, transitions, metadata, formatTime(def.CreatedAt), formatTime(def.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.AmbiguousDefinitionError{Code: def.Code, Count: 2}
		}
		return fmt.Errorf("inserting workflow definition: %w", err)
	}
	return nil
}

func (s *DefinitionStore) GetByID(ctx context.Context, id domain.ID) (*domain.Definition, error) {
	bin, hex := idArgs(id)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM workflow_definitions WHERE id IN (?, ?)`,
		bin, hex,
	)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDefinitionNotFound
		}
		return nil, err
	}
	return def, nil
}

// GetActive returns the single active definition for a code. More than one
// active row means legacy data written before the active-uniqueness index;
// it is surfaced, never silently resolved.
func (s *DefinitionStore) GetActive(ctx context.Context, code string) (*domain.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM workflow_definitions
		 WHERE code = ? AND is_active = 1 LIMIT 2`, code,
	)
	if err != nil {
		return nil, fmt.Errorf("querying active definition: %w", err)
	}
	defer rows.Close()

	var defs []*domain.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(defs) {
	case 0:
		return nil, &domain.NoActiveDefinitionError{Code: code}
	case 1:
		return defs[0], nil
	default:
		return nil, &domain.AmbiguousDefinitionError{Code: code, Count: len(defs)}
	}
}

// Activate makes the given definition the active version for its code,
// deactivating siblings in the same transaction.
func (s *DefinitionStore) Activate(ctx context.Context, id domain.ID) error {
	def, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.validator.Check(def); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning activate tx: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())

	if _, err := tx.ExecContext(ctx,
		`UPDATE workflow_definitions SET is_active = 0, updated_at = ? WHERE code = ? AND is_active = 1`,
		now, def.Code,
	); err != nil {
		return fmt.Errorf("deactivating previous versions: %w", err)
	}

	bin, hex := idArgs(id)
	if _, err := tx.ExecContext(ctx,
		`UPDATE workflow_definitions SET is_active = 1, updated_at = ? WHERE id IN (?, ?)`,
		now, bin, hex,
	); err != nil {
		return fmt.Errorf("activating definition: %w", err)
	}

	return tx.Commit()
}

func (s *DefinitionStore) Deactivate(ctx context.Context, id domain.ID) error {
	bin, hex := idArgs(id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE workflow_definitions SET is_active = 0, updated_at = ? WHERE id IN (?, ?)`,
		formatTime(time.Now().UTC()), bin, hex,
	)
	if err != nil {
		return fmt.Errorf("deactivating definition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDefinitionNotFound
	}
	return nil
}

func (s *DefinitionStore) List(ctx context.Context, limit, offset int) ([]*domain.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions ORDER BY code, version DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domain.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(row rowScanner) (*domain.Definition, error) {
	var (
		def                  domain.Definition
		rawID                []byte
		isActive             int
		states, transitions  string
		metadata             sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(&rawID, &def.Code, &def.Name, &def.Description, &def.Version, &isActive,
		&states, &transitions, &metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning definition: %w", err)
	}

	id, err := scanID(rawID)
	if err != nil {
		return nil, err
	}
	def.ID = id
	def.IsActive = isActive != 0
	def.CreatedAt = parseTime(createdAt)
	def.UpdatedAt = parseTime(updatedAt)

	if err := unmarshalJSON(states, &def.States); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(transitions, &def.Transitions); err != nil {
		return nil, err
	}
	if metadata.Valid {
		if err := unmarshalJSON(metadata.String, &def.Metadata); err != nil {
			return nil, err
		}
	}

	return &def, nil
}
