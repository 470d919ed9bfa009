package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Instants are stored as unix nanoseconds. A NULL bound is unbounded.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		depth_lower INTEGER,
		depth_upper INTEGER,
		hours_lower INTEGER,
		hours_upper INTEGER,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS lanes (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		name TEXT NOT NULL,
		max_swimmers INTEGER NOT NULL CHECK (max_swimmers > 0),
		per_hour_cost TEXT NOT NULL,
		FOREIGN KEY (pool_id) REFERENCES pools(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS lockers (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		number TEXT NOT NULL,
		per_hour_cost TEXT NOT NULL,
		FOREIGN KEY (pool_id) REFERENCES pools(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS closures (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		dates_lower INTEGER,
		dates_upper INTEGER,
		reason TEXT NOT NULL,
		FOREIGN KEY (pool_id) REFERENCES pools(id) ON DELETE CASCADE
	)`,

	// resource_id points at a lane or a locker depending on kind, so the
	// cascade from resources is done by the service.
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('lane', 'locker')),
		resource_id TEXT NOT NULL,
		pool_id TEXT NOT NULL,
		period_lower INTEGER,
		period_upper INTEGER,
		actual_lower INTEGER,
		actual_upper INTEGER,
		cancelled INTEGER,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reservation_users (
		reservation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (reservation_id, position),
		FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_lanes_pool ON lanes(pool_id)`,
	`CREATE INDEX IF NOT EXISTS idx_lockers_pool ON lockers(pool_id)`,
	`CREATE INDEX IF NOT EXISTS idx_closures_pool ON closures(pool_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_resource ON reservations(kind, resource_id, period_lower, period_upper)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_pool ON reservations(pool_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_users_user ON reservation_users(user_id)`,
}

// RunMigration creates every table and index. It is idempotent.
func RunMigration(ctx context.Context, db *sql.DB) error {
	for _, q := range statements {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
