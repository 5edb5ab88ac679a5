package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS contests (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_time  TIMESTAMPTZ,
		end_time    TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS problems (
		id                 TEXT PRIMARY KEY,
		contest_id         TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		input_test_cases   JSONB NOT NULL DEFAULT '[]',
		expected_outputs   JSONB NOT NULL DEFAULT '[]',
		time_limit_seconds INTEGER NOT NULL DEFAULT 5,
		memory_limit_mb    INTEGER NOT NULL DEFAULT 256,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_problems_contest ON problems (contest_id)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id                TEXT PRIMARY KEY,
		contest_id        TEXT NOT NULL,
		problem_id        TEXT NOT NULL,
		username          TEXT NOT NULL,
		code              TEXT NOT NULL,
		language          TEXT NOT NULL,
		status            TEXT NOT NULL,
		error_message     TEXT,
		test_cases_passed INTEGER NOT NULL DEFAULT 0,
		total_test_cases  INTEGER NOT NULL DEFAULT 0,
		submitted_at      TIMESTAMPTZ NOT NULL,
		processed_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_contest_time ON submissions (contest_id, submitted_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_status_time ON submissions (status, submitted_at, id)`,
	`CREATE TABLE IF NOT EXISTS users (
		username        TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL,
		hashed_password TEXT NOT NULL,
		role            TEXT NOT NULL DEFAULT 'user',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS contest_participants (
		contest_id TEXT NOT NULL REFERENCES contests(id) ON DELETE CASCADE,
		username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		joined_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (contest_id, username)
	)`,
}

// Migrate creates any missing tables. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database.Migrate: %w", err)
		}
	}
	return nil
}
