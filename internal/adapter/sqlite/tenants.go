package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// Compile-time check: TenantRegistry implements domain.TenantRegistry.
var _ domain.TenantRegistry = (*TenantRegistry)(nil)

// TenantRegistry stores tenant records in the system database.
type TenantRegistry struct {
	db *sql.DB
}

// NewTenantRegistry wraps the system database handle.
func NewTenantRegistry(system *sql.DB) *TenantRegistry {
	return &TenantRegistry{db: system}
}

func (r *TenantRegistry) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, code, name, status, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.Bytes(), t.Code, t.Name, string(t.Status), boolToInt(t.IsDeleted),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant code %q already provisioned: %w", t.Code, err)
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRegistry) GetByCode(ctx context.Context, code string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, code, name, status, is_deleted, created_at, updated_at
		 FROM tenants WHERE code = ?`, code,
	)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.UnknownTenantError{Code: code}
		}
		return nil, err
	}
	return t, nil
}

func (r *TenantRegistry) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, name, status, is_deleted, created_at, updated_at
		 FROM tenants WHERE is_deleted = 0 ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		t                    domain.Tenant
		rawID                []byte
		status               string
		isDeleted            int
		createdAt, updatedAt string
	)

	if err := row.Scan(&rawID, &t.Code, &t.Name, &status, &isDeleted, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}

	id, err := scanID(rawID)
	if err != nil {
		return nil, err
	}

	t.ID = id
	t.Status = domain.TenantStatus(status)
	t.IsDeleted = isDeleted != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
