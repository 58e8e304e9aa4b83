package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

const day = 24 * time.Hour

// HandleGC ages out stale jobs. Archive mode retires active jobs not seen
// within the source's archive window; delete mode purges archived and
// missing jobs whose last check is past the source's delete window. One
// source failing does not stop the sweep over the rest.
func (h *Handlers) HandleGC(ctx context.Context, job *queue.Job) error {
	var p queue.GCPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("failed to decode gc payload: %w", err)
	}
	if p.Mode != queue.GCModeArchive && p.Mode != queue.GCModeDelete {
		return fmt.Errorf("unknown gc mode: %q", p.Mode)
	}

	traceID := telemetry.EnsureTraceID(p.TraceID)

	sourceIDs, err := h.resolveGCSources(ctx, p.SourceID)
	if err != nil {
		return err
	}

	var archived, deleted int64
	var firstErr error
	processed := 0
	for _, sourceID := range sourceIDs {
		err := h.health.WithSourceHealth(ctx, sourceID, telemetry.StageGC, func(ctx context.Context) error {
			policy := sources.GCPolicyFor(sourceID)
			switch p.Mode {
			case queue.GCModeArchive:
				n, err := h.store.ArchiveStaleJobs(ctx, sourceID,
					time.Duration(policy.ArchiveAfterDays)*day,
					time.Duration(policy.ArchivedRecheckDays)*day)
				if err != nil {
					return err
				}
				archived += n
			case queue.GCModeDelete:
				n, err := h.store.DeleteStaleJobs(ctx, sourceID,
					time.Duration(policy.DeleteAfterDays)*day)
				if err != nil {
					return err
				}
				deleted += n
			}
			return nil
		})
		if err != nil {
			h.logger.Error().Err(err).
				Str("traceId", traceID).
				Str("sourceId", sourceID).
				Str("mode", p.Mode).
				Msg("gc failed for source")
			if firstErr == nil {
				firstErr = fmt.Errorf("gc %s failed for source %s: %w", p.Mode, sourceID, err)
			}
			continue
		}
		processed++
	}

	h.logger.Info().
		Str("traceId", traceID).
		Str("mode", p.Mode).
		Int64("archived", archived).
		Int64("deleted", deleted).
		Int("processedSources", processed).
		Msg("gc sweep finished")
	return firstErr
}

// resolveGCSources expands an empty source filter to every source that has
// stored jobs plus every source with a declared gc policy.
func (h *Handlers) resolveGCSources(ctx context.Context, explicit string) ([]string, error) {
	if explicit != "" {
		return []string{explicit}, nil
	}

	stored, err := h.store.DistinctJobSources(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		set[id] = struct{}{}
	}
	for _, id := range sources.KnownGCPolicySources() {
		set[id] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
