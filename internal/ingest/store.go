package ingest

import (
	"context"
	"fmt"
	"time"
)

// StoreResult summarizes the write performed by the store stage.
type StoreResult struct {
	PlannedInserts int
	PlannedUpdates int
	Upserted       int
}

// StoreOutcomes persists insert and update outcomes as one batch upsert.
// Skip outcomes are never written. Rows duplicated on (sourceId, externalId)
// within the batch are collapsed so the single statement stays valid.
func StoreOutcomes(ctx context.Context, outcomes []DedupOutcome, store Store, now time.Time) (StoreResult, error) {
	var result StoreResult

	seen := make(map[string]struct{}, len(outcomes))
	rows := make([]UpsertRow, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Action == ActionSkip {
			continue
		}
		key := o.Posting.Posting.SourceID + ":" + o.Posting.Posting.ExternalID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if o.Action == ActionInsert {
			result.PlannedInserts++
		} else {
			result.PlannedUpdates++
		}

		rows = append(rows, UpsertRow{
			Posting:     o.Posting.Posting,
			Fingerprint: o.Posting.Fingerprint,
			ContentHash: ContentHashFor(o.Posting.Posting),
			NextCheckAt: NextCheckAt(o.Posting.Posting.PostedAt, now),
		})
	}

	if len(rows) == 0 {
		return result, nil
	}

	upserted, err := store.UpsertPostings(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("store upsert: %w", err)
	}
	result.Upserted = upserted

	return result, nil
}
