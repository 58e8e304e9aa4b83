package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
)

// PipelineError wraps a stage failure. A failing stage aborts the batch
// before the store step; this is distinct from a batch with zero valid
// postings, which succeeds with zero writes.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline runs batches of raw postings through the full ingestion sequence.
type Pipeline struct {
	store  Store
	logger log.Logger
}

// NewPipeline builds a pipeline over the given canonical store.
func NewPipeline(store Store, logger log.Logger) *Pipeline {
	return &Pipeline{store: store, logger: logger}
}

// Run ingests one batch for a source: validate → normalize → fingerprint →
// dedup → store. Invalid postings are dropped and counted; stage failures
// abort the batch with a PipelineError.
func (p *Pipeline) Run(ctx context.Context, sourceID string, postings []RawPosting) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{SourceID: sourceID}
	result.Stats.Received = len(postings)

	if len(postings) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	valid, dropped := Validate(postings)
	result.Stats.Validated = len(valid)
	result.Stats.ValidationDropped = dropped
	if dropped > 0 {
		p.logger.Warn().Str("source_id", sourceID).Int("dropped", dropped).Msg("postings failed validation")
	}
	if len(valid) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	normalized := make([]NormalizedPosting, 0, len(valid))
	for _, v := range valid {
		normalized = append(normalized, Normalize(v))
	}
	result.Stats.Normalized = len(normalized)

	fingerprinted := FingerprintBatch(normalized)
	result.Stats.Fingerprinted = len(fingerprinted)

	outcomes, err := Dedup(ctx, fingerprinted, p.store)
	if err != nil {
		result.Duration = time.Since(start)
		return result, &PipelineError{Stage: "dedup", Err: err}
	}
	for _, o := range outcomes {
		switch o.Action {
		case ActionInsert:
			result.Stats.DedupPlannedInsert++
		case ActionUpdate:
			result.Stats.DedupPlannedUpdate++
		case ActionSkip:
			result.Stats.DedupSkipped++
		}
	}
	if result.Stats.DedupSkipped > 0 {
		p.logger.Info().Str("source_id", sourceID).Int("skipped", result.Stats.DedupSkipped).Msg("postings skipped as fingerprint duplicates")
	}

	storeResult, err := StoreOutcomes(ctx, outcomes, p.store, time.Now())
	if err != nil {
		result.Duration = time.Since(start)
		return result, &PipelineError{Stage: "store", Err: err}
	}
	result.Stats.Upserted = storeResult.Upserted

	p.logger.Info().
		Str("source_id", sourceID).
		Int("received", result.Stats.Received).
		Int("upserted", result.Stats.Upserted).
		Int("planned_inserts", storeResult.PlannedInserts).
		Int("planned_updates", storeResult.PlannedUpdates).
		Msg("batch ingested")

	result.Duration = time.Since(start)
	return result, nil
}
