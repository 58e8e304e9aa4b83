package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

// HandleSourceIngest runs one batch source end to end: parse the source's
// feed and push the batch through the ingestion pipeline.
func (h *Handlers) HandleSourceIngest(ctx context.Context, job *queue.Job) error {
	var p queue.SourceIngestPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("failed to decode source ingest payload: %w", err)
	}
	if p.SourceID == "" {
		return errors.New("source ingest job missing sourceId")
	}

	def, ok := h.catalog.ByID(p.SourceID)
	if !ok {
		return fmt.Errorf("unknown source: %s", p.SourceID)
	}
	if def.Kind != sources.KindBatch {
		return fmt.Errorf("source %s is not a batch source", p.SourceID)
	}

	traceID := telemetry.EnsureTraceID(p.TraceID)

	return h.health.WithSourceHealth(ctx, p.SourceID, telemetry.StageIngest, func(ctx context.Context) error {
		postings, err := def.Parser.Parse(ctx)
		if err != nil {
			return fmt.Errorf("failed to parse source %s: %w", p.SourceID, err)
		}

		result, err := h.pipeline.Run(ctx, p.SourceID, postings)
		if err != nil {
			return err
		}

		h.logger.Info().
			Str("traceId", traceID).
			Str("sourceId", p.SourceID).
			Int("received", result.Stats.Received).
			Int("upserted", result.Stats.Upserted).
			Int("validationDropped", result.Stats.ValidationDropped).
			Int("dedupSkipped", result.Stats.DedupSkipped).
			Msg("source ingest finished")
		return nil
	})
}
