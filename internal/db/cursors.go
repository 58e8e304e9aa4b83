package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Source Cursor Methods
// -----------------------------------------------------------------------------

// GetCursor retrieves the cursor for a (source, segment) pair.
// Returns nil without error when no cursor has been written yet.
func (db *DB) GetCursor(ctx context.Context, source, segmentKey string) (*SourceCursor, error) {
	var c SourceCursor
	var cursorJSON, statsJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT source, segment_key, last_polled_at, cursor, stats, updated_at
		 FROM source_cursors WHERE source = $1 AND segment_key = $2`,
		source, segmentKey,
	).Scan(&c.Source, &c.SegmentKey, &c.LastPolledAt, &cursorJSON, &statsJSON, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cursor %s/%s: %w", source, segmentKey, err)
	}

	if cursorJSON != nil {
		_ = json.Unmarshal(cursorJSON, &c.Cursor)
	}
	if statsJSON != nil {
		_ = json.Unmarshal(statsJSON, &c.Stats)
	}
	return &c, nil
}

// UpsertCursor records a completed poll: the opaque cursor blob, run stats,
// and the high-water mark. Sibling segments complete out of order, so
// last_polled_at keeps the later of the stored and incoming values.
func (db *DB) UpsertCursor(ctx context.Context, source, segmentKey string, lastPolledAt time.Time, cursor, stats map[string]any) error {
	cursorJSON, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor state: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor stats: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO source_cursors (source, segment_key, last_polled_at, cursor, stats)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source, segment_key) DO UPDATE SET
		     last_polled_at = GREATEST(source_cursors.last_polled_at, EXCLUDED.last_polled_at),
		     cursor = EXCLUDED.cursor,
		     stats = EXCLUDED.stats,
		     updated_at = NOW()`,
		source, segmentKey, lastPolledAt, cursorJSON, statsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cursor %s/%s: %w", source, segmentKey, err)
	}
	return nil
}
