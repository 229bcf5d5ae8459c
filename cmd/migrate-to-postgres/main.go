// migrate-to-postgres migrates data from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/dicehall.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user dicehall \
//	    -pg-password dicehall \
//	    -pg-database dicehall
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/dicehall/internal/database"
)

func main() {
	// Parse command-line flags
	sqlitePath := flag.String("sqlite", "data/dicehall.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "dicehall", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "dicehall", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "dicehall", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Migration Tool")
	log.Println("====================================")

	// Open SQLite database
	log.Printf("Opening SQLite database: %s", *sqlitePath)
	sqliteDB, err := sql.Open("sqlite", *sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer sqliteDB.Close()

	if err := sqliteDB.Ping(); err != nil {
		log.Fatalf("Failed to connect to SQLite database: %v", err)
	}

	// Open PostgreSQL through the shared database layer so the schema is
	// created exactly as the server would create it.
	pgConfig := database.Config{
		Driver: "postgres",
		Postgres: database.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
			SSLMode:  *pgSSLMode,
		},
	}

	log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
	pg, err := database.Open(pgConfig)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer pg.Close()
	pgDB := pg.DB()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	tables := []struct {
		name    string
		migrate func(*sql.DB, *sql.DB, bool) (int64, error)
	}{
		{"accounts", migrateAccounts},
		{"rolls", migrateRolls},
	}

	var totalRows int64
	for _, t := range tables {
		log.Printf("Migrating table: %s", t.name)
		count, err := t.migrate(sqliteDB, pgDB, *dryRun)
		if err != nil {
			log.Fatalf("Failed to migrate %s: %v", t.name, err)
		}
		log.Printf("  Migrated %d rows", count)
		totalRows += count
	}

	log.Println("====================================")
	log.Printf("Migration complete! Total rows migrated: %d", totalRows)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}

// migrateAccounts copies the accounts table, preserving IDs so the rolls
// foreign keys stay valid.
func migrateAccounts(src, dst *sql.DB, dryRun bool) (int64, error) {
	rows, err := src.Query(
		"SELECT id, username, password_hash, created_at, last_login, last_ip, banned, is_admin FROM accounts")
	if err != nil {
		return 0, fmt.Errorf("failed to read accounts: %w", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		var id int64
		var username, passwordHash string
		var createdAt sql.NullTime
		var lastLogin sql.NullTime
		var lastIP sql.NullString
		var banned, isAdmin int

		if err := rows.Scan(&id, &username, &passwordHash, &createdAt, &lastLogin, &lastIP, &banned, &isAdmin); err != nil {
			return count, fmt.Errorf("failed to scan account: %w", err)
		}

		if !dryRun {
			_, err := dst.Exec(
				`INSERT INTO accounts (id, username, password_hash, created_at, last_login, last_ip, banned, is_admin)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (username) DO NOTHING`,
				id, username, passwordHash, createdAt, lastLogin, lastIP, banned, isAdmin)
			if err != nil {
				return count, fmt.Errorf("failed to insert account %q: %w", username, err)
			}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	// Bump the sequence past the copied IDs.
	if !dryRun && count > 0 {
		if _, err := dst.Exec(
			"SELECT setval(pg_get_serial_sequence('accounts', 'id'), (SELECT MAX(id) FROM accounts))"); err != nil {
			return count, fmt.Errorf("failed to update accounts sequence: %w", err)
		}
	}

	return count, nil
}

// migrateRolls copies the roll history.
func migrateRolls(src, dst *sql.DB, dryRun bool) (int64, error) {
	rows, err := src.Query(
		"SELECT id, account_id, expression, total, blocks, rolled_at FROM rolls")
	if err != nil {
		return 0, fmt.Errorf("failed to read rolls: %w", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		var id, accountID int64
		var expression string
		var total, blocks int
		var rolledAt sql.NullTime

		if err := rows.Scan(&id, &accountID, &expression, &total, &blocks, &rolledAt); err != nil {
			return count, fmt.Errorf("failed to scan roll: %w", err)
		}

		if !dryRun {
			_, err := dst.Exec(
				`INSERT INTO rolls (id, account_id, expression, total, blocks, rolled_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO NOTHING`,
				id, accountID, expression, total, blocks, rolledAt)
			if err != nil {
				return count, fmt.Errorf("failed to insert roll %d: %w", id, err)
			}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	if !dryRun && count > 0 {
		if _, err := dst.Exec(
			"SELECT setval(pg_get_serial_sequence('rolls', 'id'), (SELECT MAX(id) FROM rolls))"); err != nil {
			return count, fmt.Errorf("failed to update rolls sequence: %w", err)
		}
	}

	return count, nil
}
