// Package database opens the organizer's embedded catalog store.
//
// Follows pkg/database.NewConnection's shape, but this core runs
// single-host against an embedded file (both commands open
// <CONFIG_DIR>/catalog.db) rather than a networked Postgres, so the driver is swapped for
// modernc.org/sqlite (pure Go, no cgo) — the same embedded-catalog driver
// choice as jra3-linear-fuse. jmoiron/sqlx's struct-scan/NamedExecContext
// idiom is kept verbatim.
package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Config holds the embedded store's connection tuning.
type Config struct {
	Path            string        `yaml:"path" env:"DB_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
}

// NewConnection opens the sqlite-backed catalog database at config.Path.
func NewConnection(config Config) (*sqlx.DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if config.MaxOpenConns == 0 {
		// A single writer connection avoids SQLITE_BUSY under the catalog's
		// own serialized write discipline.
		config.MaxOpenConns = 1
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 1
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}

	// foreign_keys must be enabled per-connection: sqlite ignores ON DELETE
	// CASCADE (and every other FK action) unless this pragma is set, it is
	// off by default, and it does not persist in the database file itself.
	dsn := config.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
