package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RollRecord is one stored roll result.
type RollRecord struct {
	ID         int64
	AccountID  int64
	Expression string
	Total      int
	Blocks     int
	RolledAt   time.Time
}

// RollStats summarizes an account's roll history.
type RollStats struct {
	Count    int
	Highest  int
	Lowest   int
	Average  float64
	LastRoll *time.Time
}

// RecordRoll stores a completed roll for an account.
func (d *Database) RecordRoll(accountID int64, expression string, total, blocks int) error {
	query := d.qb.Build(
		"INSERT INTO rolls (account_id, expression, total, blocks) VALUES (?, ?, ?, ?)")
	if _, err := d.db.Exec(query, accountID, expression, total, blocks); err != nil {
		return fmt.Errorf("failed to record roll: %w", err)
	}
	return nil
}

// RecentRolls returns the account's most recent rolls, newest first.
func (d *Database) RecentRolls(accountID int64, limit int) ([]RollRecord, error) {
	if limit < 1 {
		limit = 10
	}

	query := d.qb.Build(
		"SELECT id, account_id, expression, total, blocks, rolled_at FROM rolls WHERE account_id = ? ORDER BY rolled_at DESC, id DESC LIMIT ?")

	rows, err := d.db.Query(query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rolls: %w", err)
	}
	defer rows.Close()

	var records []RollRecord
	for rows.Next() {
		var r RollRecord
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Expression, &r.Total, &r.Blocks, &r.RolledAt); err != nil {
			return nil, fmt.Errorf("failed to scan roll: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rolls: %w", err)
	}

	return records, nil
}

// GetRollStats returns aggregate statistics over an account's roll history.
func (d *Database) GetRollStats(accountID int64) (*RollStats, error) {
	var stats RollStats
	var highest, lowest sql.NullInt64
	var average sql.NullFloat64
	var lastRoll sql.NullTime

	query := d.qb.Build(
		"SELECT COUNT(*), MAX(total), MIN(total), AVG(total), MAX(rolled_at) FROM rolls WHERE account_id = ?")

	err := d.db.QueryRow(query, accountID).Scan(
		&stats.Count, &highest, &lowest, &average, &lastRoll)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &stats, nil
		}
		return nil, fmt.Errorf("failed to query roll stats: %w", err)
	}

	if highest.Valid {
		stats.Highest = int(highest.Int64)
	}
	if lowest.Valid {
		stats.Lowest = int(lowest.Int64)
	}
	if average.Valid {
		stats.Average = average.Float64
	}
	if lastRoll.Valid {
		stats.LastRoll = &lastRoll.Time
	}

	return &stats, nil
}
