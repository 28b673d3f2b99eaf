package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

const tableName = "citytemperature"

var schema = map[string][]string{ //nolint:gochecknoglobals // static DDL
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS citytemperature (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT NOT NULL,
			year INTEGER NOT NULL CHECK (year > 1900),
			avg_temperature REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citytemperature_city_year ON citytemperature (city, year)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS citytemperature (
			id BIGSERIAL PRIMARY KEY,
			city TEXT NOT NULL,
			year INTEGER NOT NULL CHECK (year > 1900),
			avg_temperature DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citytemperature_city_year ON citytemperature (city, year)`,
	},
}

// Open connects to the database, configures the pool and verifies the
// connection. The caller owns the returned pool.
func Open(ctx context.Context, driver, dsn string, opts ...OpenOption) (*sqlx.DB, error) {
	if _, ok := schema[driver]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	cfg := openConfig{
		maxOpenConns:    defaultMaxOpenConns,
		maxIdleConns:    defaultMaxIdleConns,
		connMaxLifetime: defaultConnMaxLifetime,
		pingTimeout:     defaultPingTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" a single database.
		cfg.maxOpenConns, cfg.maxIdleConns = 1, 1
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the aggregate table and its index when absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schema[db.DriverName()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
