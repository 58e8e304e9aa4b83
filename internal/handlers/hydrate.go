package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/ingest"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/telemetry"
)

type hydrateResult struct {
	Upserted            int
	Status              string
	SkippedContentWrite bool
}

// statusInvalid is reported, never persisted: a vacancy that fails schema
// validation leaves the stored row untouched.
const statusInvalid = "invalid"

// HandleHydrate fetches one vacancy's detail record and ingests it. A 404
// marks the stored job missing; an unchanged content hash only bumps the
// lifecycle timestamps.
func (h *Handlers) HandleHydrate(ctx context.Context, job *queue.Job) error {
	var p queue.HydratePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("failed to decode hydrate payload: %w", err)
	}
	if p.VacancyID == "" {
		return errors.New("hydrate job missing vacancyId")
	}

	traceID := telemetry.EnsureTraceID(p.TraceID)

	return h.health.WithSourceHealth(ctx, hhSourceID, telemetry.StageHydrate, func(ctx context.Context) error {
		result, err := h.runHydrate(ctx, p)
		if err != nil {
			return err
		}
		h.logger.Info().
			Str("traceId", traceID).
			Str("vacancyId", p.VacancyID).
			Str("reason", p.Reason).
			Str("status", result.Status).
			Int("upserted", result.Upserted).
			Bool("skippedContentWrite", result.SkippedContentWrite).
			Msg("vacancy hydrated")
		return nil
	})
}

func (h *Handlers) runHydrate(ctx context.Context, p queue.HydratePayload) (hydrateResult, error) {
	now := h.now()
	externalID := hh.ExternalID(p.VacancyID)

	detail, err := h.api.Vacancy(ctx, p.VacancyID)
	if err != nil {
		var httpErr *hh.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			if err := h.store.MarkJobMissing(ctx, hhSourceID, externalID, archivedRecheck); err != nil {
				return hydrateResult{}, err
			}
			return hydrateResult{Status: db.StatusMissing}, nil
		}
		return hydrateResult{}, err
	}

	raw := hh.MapVacancy(detail)
	valid, _ := ingest.Validate([]ingest.RawPosting{raw})
	if len(valid) == 0 {
		return hydrateResult{Status: statusInvalid}, nil
	}
	normalized := ingest.Normalize(valid[0])

	status := db.StatusActive
	nextCheckAt := ingest.NextCheckAt(normalized.PostedAt, now)
	if detail.Archived {
		status = db.StatusArchived
		nextCheckAt = now.Add(archivedRecheck)
	}

	contentHash := ingest.ContentHashFor(normalized)
	existing, err := h.store.GetJobByExternalID(ctx, hhSourceID, externalID)
	if err != nil {
		return hydrateResult{}, err
	}
	if existing != nil && existing.ContentHash == contentHash {
		if err := h.store.TouchJob(ctx, hhSourceID, externalID, status, nextCheckAt); err != nil {
			return hydrateResult{}, err
		}
		return hydrateResult{Status: status, SkippedContentWrite: true}, nil
	}

	result, err := h.pipeline.Run(ctx, hhSourceID, []ingest.RawPosting{raw})
	if err != nil {
		return hydrateResult{}, err
	}
	if err := h.store.TouchJob(ctx, hhSourceID, externalID, status, nextCheckAt); err != nil {
		return hydrateResult{}, err
	}
	return hydrateResult{Upserted: result.Stats.Upserted, Status: status}, nil
}
