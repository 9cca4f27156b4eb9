package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // embedded SQLite driver
)

// DB wraps the database connection. Both PostgreSQL and SQLite are
// supported; queries use sqlx.Rebind so placeholders stay portable.
type DB struct {
	conn   *sqlx.DB
	driver string
}

// DBConfig holds database configuration.
type DBConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is the connection string (Postgres URL or SQLite file path).
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig returns default database configuration: an embedded
// SQLite database, suitable for standalone deployments.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Driver: "sqlite",
		DSN:    "modelarena.db",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewDB opens a database connection and applies migrations.
func NewDB(cfg DBConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	conn, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	db := &DB{conn: conn, driver: driver}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the schema. Column types are chosen to be valid in both
// PostgreSQL and SQLite.
func (db *DB) migrate(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS comparisons (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		model_id_1 TEXT NOT NULL,
		model_id_2 TEXT NOT NULL,
		final_text_1 TEXT,
		final_text_2 TEXT,
		cost_1 DOUBLE PRECISION,
		cost_2 DOUBLE PRECISION,
		error_1 TEXT,
		error_2 TEXT,
		created_at TIMESTAMP NOT NULL
	)`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return err
	}

	index := `CREATE INDEX IF NOT EXISTS idx_comparisons_created_at
		ON comparisons (created_at)`
	_, err := db.conn.ExecContext(ctx, index)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database.
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// Conn returns the underlying sqlx connection.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}
