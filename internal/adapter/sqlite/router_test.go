package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/neomorfeo/workflowiq/internal/adapter/sqlite"
	"github.com/neomorfeo/workflowiq/internal/domain"
)

// newTestRouter builds a router over a temp directory with one provisioned
// tenant ("acme").
func newTestRouter(t *testing.T) (*sqlite.Router, *sqlite.TenantRegistry) {
	t.Helper()

	dir := t.TempDir()
	system, err := sqlite.Open(filepath.Join(dir, "system.db"))
	if err != nil {
		t.Fatalf("opening system db: %v", err)
	}
	t.Cleanup(func() { system.Close() })

	if err := sqlite.MigrateSystem(system); err != nil {
		t.Fatalf("migrating system db: %v", err)
	}

	registry := sqlite.NewTenantRegistry(system)
	mustProvision(t, registry, "acme")

	router := sqlite.NewRouter(dir, system, registry, sqlite.Open)
	t.Cleanup(func() { router.Close() })
	return router, registry
}

func mustProvision(t *testing.T, registry *sqlite.TenantRegistry, code string) {
	t.Helper()
	id, err := domain.NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	now := time.Now().UTC()
	err = registry.Create(context.Background(), &domain.Tenant{
		ID: id, Code: code, Name: code, Status: domain.TenantActive,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("provisioning tenant %q: %v", code, err)
	}
}

func tenantCtx(code string) context.Context {
	return domain.WithTenant(context.Background(), code)
}

func TestResolve_EmptyContextReturnsSystemHandle(t *testing.T) {
	router, _ := newTestRouter(t)

	db, err := router.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if db != router.System() {
		t.Error("empty tenant context must resolve to the system handle")
	}

	// Explicit system scope behaves the same.
	db, err = router.Resolve(tenantCtx("system"))
	if err != nil {
		t.Fatalf("Resolve(system) failed: %v", err)
	}
	if db != router.System() {
		t.Error("system scope must resolve to the system handle")
	}
}

func TestResolve_ProvisionedTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	db, err := router.Resolve(tenantCtx("acme"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if db == router.System() {
		t.Fatal("tenant context must not resolve to the system handle")
	}

	// Handle is cached: same handle on every resolution.
	again, err := router.Resolve(tenantCtx("acme"))
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again != db {
		t.Error("repeated resolution should reuse the cached handle")
	}
}

func TestResolve_UnknownTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	_, err := router.Resolve(tenantCtx("ghost"))
	var unknown *domain.UnknownTenantError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTenantError, got %v", err)
	}
	if unknown.Code != "ghost" {
		t.Errorf("Code = %q, want %q", unknown.Code, "ghost")
	}
}

func TestResolve_DisabledTenant(t *testing.T) {
	router, registry := newTestRouter(t)

	id, _ := domain.NewID()
	now := time.Now().UTC()
	if err := registry.Create(context.Background(), &domain.Tenant{
		ID: id, Code: "dormant", Name: "Dormant", Status: domain.TenantDisabled,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("creating disabled tenant: %v", err)
	}

	_, err := router.Resolve(tenantCtx("dormant"))
	var unknown *domain.UnknownTenantError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTenantError for disabled tenant, got %v", err)
	}
}

func TestResolve_DistinctTenantsGetDistinctHandles(t *testing.T) {
	router, registry := newTestRouter(t)
	mustProvision(t, registry, "globex")

	acme, err := router.Resolve(tenantCtx("acme"))
	if err != nil {
		t.Fatalf("Resolve(acme) failed: %v", err)
	}
	globex, err := router.Resolve(tenantCtx("globex"))
	if err != nil {
		t.Fatalf("Resolve(globex) failed: %v", err)
	}
	if acme == globex {
		t.Error("distinct tenants must not share a database handle")
	}
}

func TestResolve_ConcurrentSameTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	const callers = 16
	handles := make([]any, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			db, err := router.Resolve(tenantCtx("acme"))
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			handles[i] = db
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
}

func TestTenantDatabaseName_Deterministic(t *testing.T) {
	if got := sqlite.TenantDatabaseName("acme"); got != "tenant_acme.db" {
		t.Errorf("TenantDatabaseName = %q, want %q", got, "tenant_acme.db")
	}
}
