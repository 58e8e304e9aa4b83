package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/telemetry"
)

// HandleRefresh leases a batch of active vacancies whose recheck is due and
// fans out hydrate jobs for them. The lease moves next_check_at forward so
// an overlapping refresh run cannot pick the same rows.
func (h *Handlers) HandleRefresh(ctx context.Context, job *queue.Job) error {
	var p queue.RefreshPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("failed to decode refresh payload: %w", err)
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRefreshBatch
	}
	if batchSize > maxRefreshBatch {
		batchSize = maxRefreshBatch
	}

	traceID := telemetry.EnsureTraceID(p.TraceID)

	return h.health.WithSourceHealth(ctx, hhSourceID, telemetry.StageRefresh, func(ctx context.Context) error {
		refs, err := h.store.LeaseDueForRefresh(ctx, hhSourceID, batchSize, refreshLease)
		if err != nil {
			return err
		}

		enqueued := 0
		for _, ref := range refs {
			vacancyID := strings.TrimPrefix(ref.ExternalID, hhSourceID+":")
			if vacancyID == "" {
				continue
			}
			payload := queue.HydratePayload{VacancyID: vacancyID, Reason: queue.ReasonRefresh, TraceID: traceID}
			ok, err := h.queue.Enqueue(ctx, queue.HydrateQueue, hydrateJobID(queue.ReasonRefresh, vacancyID), payload)
			if err != nil {
				return fmt.Errorf("failed to enqueue refresh hydrate for %s: %w", ref.ExternalID, err)
			}
			if ok {
				enqueued++
			}
		}

		h.logger.Info().
			Str("traceId", traceID).
			Int("selected", len(refs)).
			Int("enqueued", enqueued).
			Msg("refresh batch leased")
		return nil
	})
}
