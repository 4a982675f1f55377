package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/system/*.sql migrations/tenant/*.sql
var migrations embed.FS

// goose's base FS is package-global state; serialise migration runs so
// concurrent tenant database creation cannot interleave.
var migrateMu sync.Mutex

func runMigrations(db *sql.DB, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running %s migrations: %w", dir, err)
	}

	return nil
}

// MigrateSystem prepares the shared system database schema.
func MigrateSystem(db *sql.DB) error {
	return runMigrations(db, "migrations/system")
}

// MigrateTenant prepares a per-tenant database schema. Called lazily by the
// Router on first resolution of a tenant.
func MigrateTenant(db *sql.DB) error {
	return runMigrations(db, "migrations/tenant")
}

// Open opens a plain SQLite database with the pragmas the engine relies on.
// Production wiring uses the otel adapter's instrumented opener instead.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}
