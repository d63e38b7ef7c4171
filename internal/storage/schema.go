package storage

import (
	"context"
	"fmt"
)

// schema is portable between PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		slug        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS effects (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		slug             TEXT NOT NULL UNIQUE,
		category_id      TEXT NOT NULL REFERENCES categories(id),
		user_description TEXT NOT NULL DEFAULT '',
		hidden_prompt    TEXT NOT NULL,
		thumbnail_url    TEXT NOT NULL DEFAULT '',
		strength         DOUBLE PRECISION NOT NULL DEFAULT 0.7,
		preserve_faces   BOOLEAN NOT NULL DEFAULT TRUE,
		max_resolution   TEXT NOT NULL DEFAULT '2048x2048',
		output_format    TEXT NOT NULL DEFAULT 'jpeg',
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		is_premium       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id                TEXT PRIMARY KEY,
		user_id           TEXT,
		storage_key       TEXT NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		mime_type         TEXT NOT NULL DEFAULT '',
		file_size         BIGINT NOT NULL DEFAULT 0,
		image_width       INTEGER NOT NULL DEFAULT 0,
		image_height      INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id              TEXT PRIMARY KEY,
		upload_id       TEXT NOT NULL REFERENCES uploads(id),
		effect_id       TEXT NOT NULL REFERENCES effects(id),
		user_id         TEXT,
		status          TEXT NOT NULL CHECK (status IN ('processing', 'completed', 'failed')),
		processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
		error_detail    TEXT,
		result_key      TEXT,
		result_metadata TEXT NOT NULL DEFAULT '{}',
		quota_month     TEXT,
		quota_reserved  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		started_at      TIMESTAMP,
		completed_at    TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_started_at ON jobs (status, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_user_id ON jobs (user_id)`,
	`CREATE TABLE IF NOT EXISTS usage_counters (
		user_id              TEXT NOT NULL,
		month                TEXT NOT NULL,
		effects_used         INTEGER NOT NULL DEFAULT 0,
		premium_effects_used INTEGER NOT NULL DEFAULT 0,
		effects_reserved     INTEGER NOT NULL DEFAULT 0,
		created_at           TIMESTAMP NOT NULL,
		updated_at           TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, month)
	)`,
}

// Migrate creates missing tables and indexes.
func (s *Storage) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	s.logger.Info("Database schema is up to date")
	return nil
}
