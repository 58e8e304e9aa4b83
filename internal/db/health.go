package db

import (
	"context"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Source Health Methods
// -----------------------------------------------------------------------------

// RecordHealthSuccess upserts the (source, stage) health row after a
// successful handler run, resetting the failure streak.
func (db *DB) RecordHealthSuccess(ctx context.Context, sourceID, stage string, duration time.Duration) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO source_health (source_id, stage, status, consecutive_failures,
		     last_duration_ms, last_run_at, last_success_at)
		 VALUES ($1, $2, 'ok', 0, $3, NOW(), NOW())
		 ON CONFLICT (source_id, stage) DO UPDATE SET
		     status = 'ok',
		     consecutive_failures = 0,
		     last_duration_ms = EXCLUDED.last_duration_ms,
		     last_run_at = NOW(),
		     last_success_at = NOW()`,
		sourceID, stage, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record health success %s/%s: %w", sourceID, stage, err)
	}
	return nil
}

// RecordHealthFailure upserts the (source, stage) health row after a failed
// handler run, incrementing the failure streak and storing the error text.
func (db *DB) RecordHealthFailure(ctx context.Context, sourceID, stage string, duration time.Duration, errMsg string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO source_health (source_id, stage, status, consecutive_failures,
		     last_duration_ms, last_run_at, last_error_at, last_error)
		 VALUES ($1, $2, 'error', 1, $3, NOW(), NOW(), $4)
		 ON CONFLICT (source_id, stage) DO UPDATE SET
		     status = 'error',
		     consecutive_failures = source_health.consecutive_failures + 1,
		     last_duration_ms = EXCLUDED.last_duration_ms,
		     last_run_at = NOW(),
		     last_error_at = NOW(),
		     last_error = EXCLUDED.last_error`,
		sourceID, stage, duration.Milliseconds(), truncateHealthError(errMsg),
	)
	if err != nil {
		return fmt.Errorf("failed to record health failure %s/%s: %w", sourceID, stage, err)
	}
	return nil
}

// ListSourceHealth returns every (source, stage) health row.
func (db *DB) ListSourceHealth(ctx context.Context) ([]SourceHealth, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT source_id, stage, status, consecutive_failures, last_duration_ms,
		        last_run_at, last_success_at, last_error_at, last_error
		 FROM source_health
		 ORDER BY source_id, stage`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list source health: %w", err)
	}
	defer rows.Close()

	var entries []SourceHealth
	for rows.Next() {
		var h SourceHealth
		if err := rows.Scan(&h.SourceID, &h.Stage, &h.Status, &h.ConsecutiveFailures,
			&h.LastDurationMs, &h.LastRunAt, &h.LastSuccessAt, &h.LastErrorAt, &h.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan source health: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source health: %w", err)
	}
	return entries, nil
}
