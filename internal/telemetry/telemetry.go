// Package telemetry records per-(source, stage) health around handler runs
// and manages trace ids.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
)

// Stage names used in source_health rows.
const (
	StageIngest  = "ingest"
	StageIndex   = "index"
	StageHydrate = "hydrate"
	StageRefresh = "refresh"
	StageGC      = "gc"
)

// HealthStore is the persistence surface for health rows; *db.DB satisfies it.
type HealthStore interface {
	RecordHealthSuccess(ctx context.Context, sourceID, stage string, duration time.Duration) error
	RecordHealthFailure(ctx context.Context, sourceID, stage string, duration time.Duration, errMsg string) error
}

// Recorder wraps handler execution with health bookkeeping.
type Recorder struct {
	store  HealthStore
	logger log.Logger
}

// NewRecorder builds a Recorder.
func NewRecorder(store HealthStore, logger log.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// WithSourceHealth runs fn and upserts the (source, stage) health row with
// the outcome and duration. The handler's error is returned as-is; health
// write failures are logged and swallowed so telemetry can never fail a job.
// The write uses a detached context so it still lands during shutdown.
func (r *Recorder) WithSourceHealth(ctx context.Context, sourceID, stage string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		if writeErr := r.store.RecordHealthFailure(writeCtx, sourceID, stage, duration, err.Error()); writeErr != nil {
			r.logger.Warn().Err(writeErr).
				Str("source", sourceID).
				Str("stage", stage).
				Msg("could not record health failure")
		}
		return err
	}

	if writeErr := r.store.RecordHealthSuccess(writeCtx, sourceID, stage, duration); writeErr != nil {
		r.logger.Warn().Err(writeErr).
			Str("source", sourceID).
			Str("stage", stage).
			Msg("could not record health success")
	}
	return nil
}

// EnsureTraceID returns the given trace id, or a fresh UUID when empty.
// Handlers call it once and propagate the result to every derived job.
func EnsureTraceID(traceID string) string {
	if traceID != "" {
		return traceID
	}
	return uuid.New().String()
}
