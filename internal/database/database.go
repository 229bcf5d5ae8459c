// Package database provides persistence for accounts and roll history,
// backed by SQLite by default with optional PostgreSQL support.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config holds database connection configuration.
type Config struct {
	// Driver selects the backend: "sqlite" or "postgres".
	Driver string

	// SQLitePath is the database file path when Driver is "sqlite".
	SQLitePath string

	// Postgres holds connection settings when Driver is "postgres".
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL-specific connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a Config using SQLite at the given path.
func DefaultConfig(sqlitePath string) Config {
	return Config{
		Driver:     "sqlite",
		SQLitePath: sqlitePath,
	}
}

// ConnString builds the lib/pq connection string.
func (c PostgresConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode,
	)
}

// Database wraps a SQL connection and provides persistence operations.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens the database described by the config and runs migrations.
func Open(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var db *sql.DB
	var err error

	switch dialect.(type) {
	case *PostgresDialect:
		db, err = sql.Open(dialect.DriverName(), cfg.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

	default:
		// Ensure the directory for the SQLite file exists.
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open(dialect.DriverName(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run init statement: %w", err)
		}
	}

	d := &Database{
		db:      db,
		dialect: dialect,
		qb:      NewQueryBuilder(dialect),
	}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

// OpenSQLite opens a SQLite database at the given path.
func OpenSQLite(path string) (*Database, error) {
	return Open(DefaultConfig(path))
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB for advanced operations.
func (d *Database) DB() *sql.DB {
	return d.db
}

// migrate creates the schema if it doesn't exist.
func (d *Database) migrate() error {
	var migrations []string

	if _, ok := d.dialect.(*PostgresDialect); ok {
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id SERIAL PRIMARY KEY,
				username CITEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				last_login TIMESTAMP,
				last_ip TEXT,
				banned INTEGER NOT NULL DEFAULT 0,
				is_admin INTEGER NOT NULL DEFAULT 0
			)`,

			`CREATE TABLE IF NOT EXISTS rolls (
				id SERIAL PRIMARY KEY,
				account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				expression TEXT NOT NULL,
				total INTEGER NOT NULL,
				blocks INTEGER NOT NULL DEFAULT 0,
				rolled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,

			`CREATE INDEX IF NOT EXISTS idx_rolls_account_id ON rolls(account_id, rolled_at)`,
		}
	} else {
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL COLLATE NOCASE,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				last_login TIMESTAMP,
				last_ip TEXT,
				banned INTEGER NOT NULL DEFAULT 0,
				is_admin INTEGER NOT NULL DEFAULT 0
			)`,

			`CREATE TABLE IF NOT EXISTS rolls (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				expression TEXT NOT NULL,
				total INTEGER NOT NULL,
				blocks INTEGER NOT NULL DEFAULT 0,
				rolled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,

			`CREATE INDEX IF NOT EXISTS idx_rolls_account_id ON rolls(account_id, rolled_at)`,
		}
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}
