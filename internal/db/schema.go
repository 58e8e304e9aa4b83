package db

import (
	"context"
	"fmt"
)

const schemaSQL = `
-- Canonical job postings
-- One row per (source, external id); fingerprint links duplicates across sources
CREATE TABLE IF NOT EXISTS jobs (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	source_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	company_logo_url TEXT,
	location TEXT,
	is_remote BOOLEAN NOT NULL DEFAULT FALSE,
	description TEXT NOT NULL,
	tags TEXT[] NOT NULL DEFAULT '{}',
	salary_min INTEGER,
	salary_max INTEGER,
	salary_currency TEXT,
	posted_at TIMESTAMPTZ,
	apply_url TEXT,
	fingerprint TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_checked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	next_check_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (source_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_fingerprint ON jobs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_jobs_next_check ON jobs(next_check_at) WHERE status IN ('active', 'archived');
CREATE INDEX IF NOT EXISTS idx_jobs_source_status ON jobs(source_id, status);
CREATE INDEX IF NOT EXISTS idx_jobs_first_seen ON jobs(first_seen_at);

-- Per-(source, segment) indexing progress
CREATE TABLE IF NOT EXISTS source_cursors (
	source TEXT NOT NULL,
	segment_key TEXT NOT NULL,
	last_polled_at TIMESTAMPTZ NOT NULL,
	cursor JSONB,
	stats JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (source, segment_key)
);

-- Latest outcome per (source, stage)
CREATE TABLE IF NOT EXISTS source_health (
	source_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_duration_ms BIGINT NOT NULL DEFAULT 0,
	last_run_at TIMESTAMPTZ NOT NULL,
	last_success_at TIMESTAMPTZ,
	last_error_at TIMESTAMPTZ,
	last_error TEXT,
	PRIMARY KEY (source_id, stage)
);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
