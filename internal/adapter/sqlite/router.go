package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/neomorfeo/workflowiq/internal/domain"
)

// OpenFunc opens a database handle for the given data source name. The
// production opener adds otelsql instrumentation; tests use Open.
type OpenFunc func(dataSourceName string) (*sql.DB, error)

// Router maps a tenant context to a live database handle. The system
// database holds the tenant registry and workflow definitions; each
// provisioned tenant gets a dedicated database whose file name derives
// deterministically from its code. Handles are cached for the lifetime of
// the Router; it is constructed once and injected into the stores rather
// than held as package state.
type Router struct {
	dataDir  string
	system   *sql.DB
	registry domain.TenantRegistry
	open     OpenFunc

	mu      sync.RWMutex
	handles map[string]*sql.DB
	group   singleflight.Group
}

// NewRouter creates a router over an already-migrated system handle.
func NewRouter(dataDir string, system *sql.DB, registry domain.TenantRegistry, open OpenFunc) *Router {
	return &Router{
		dataDir:  dataDir,
		system:   system,
		registry: registry,
		open:     open,
		handles:  make(map[string]*sql.DB),
	}
}

// System returns the shared system database handle, used exclusively by
// the definition store and the tenant registry.
func (r *Router) System() *sql.DB {
	return r.system
}

// TenantDatabaseName derives the database file name for a tenant code.
func TenantDatabaseName(code string) string {
	return fmt.Sprintf("tenant_%s.db", code)
}

// Resolve returns the database handle for the context's tenant code. An
// empty code (or the explicit "system" scope) resolves to the system
// database. Unprovisioned or non-routable tenants fail with
// UnknownTenantError; resolving them to the system database instead would
// leak data across tenants.
//
// First resolution of a tenant opens its database and runs the tenant
// migrations; concurrent callers for that same tenant share one
// construction, while other tenants proceed independently.
func (r *Router) Resolve(ctx context.Context) (*sql.DB, error) {
	code := domain.TenantCode(ctx)
	if code == "" || code == "system" {
		return r.system, nil
	}

	r.mu.RLock()
	db, ok := r.handles[code]
	r.mu.RUnlock()
	if ok {
		return db, nil
	}

	v, err, _ := r.group.Do(code, func() (any, error) {
		r.mu.RLock()
		db, ok := r.handles[code]
		r.mu.RUnlock()
		if ok {
			return db, nil
		}

		tenant, err := r.registry.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !tenant.Routable() {
			return nil, &domain.UnknownTenantError{Code: code}
		}

		db, err = r.open(filepath.Join(r.dataDir, TenantDatabaseName(code)))
		if err != nil {
			return nil, fmt.Errorf("opening tenant database %q: %w", code, err)
		}
		if err := MigrateTenant(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating tenant database %q: %w", code, err)
		}

		r.mu.Lock()
		r.handles[code] = db
		r.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// Close closes all cached tenant handles. The system handle is owned by
// the caller that opened it.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for code, db := range r.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing tenant database %q: %w", code, err)
		}
		delete(r.handles, code)
	}
	return firstErr
}
