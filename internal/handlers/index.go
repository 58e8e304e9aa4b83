package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/telemetry"
)

type indexResult struct {
	Found               int
	PagesFetched        int
	Enqueued            int
	Split               bool
	SkippedDueToBacklog bool
}

// HandleIndex searches one (role, window) slice of the vacancy API. Windows
// whose result count exceeds the API's depth cap are halved into two child
// index jobs instead of being paged through truncated.
func (h *Handlers) HandleIndex(ctx context.Context, job *queue.Job) error {
	var p queue.IndexPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("failed to decode index payload: %w", err)
	}
	if p.ProfessionalRole == "" {
		return errors.New("index job missing professionalRole")
	}

	traceID := telemetry.EnsureTraceID(p.TraceID)

	return h.health.WithSourceHealth(ctx, hhSourceID, telemetry.StageIndex, func(ctx context.Context) error {
		result, err := h.runIndex(ctx, p, traceID)
		if err != nil {
			return err
		}
		h.logger.Info().
			Str("traceId", traceID).
			Str("professionalRole", p.ProfessionalRole).
			Int("depth", p.Depth).
			Int("found", result.Found).
			Int("pagesFetched", result.PagesFetched).
			Int("enqueued", result.Enqueued).
			Bool("split", result.Split).
			Bool("skippedDueToBacklog", result.SkippedDueToBacklog).
			Msg("index window processed")
		return nil
	})
}

func (h *Handlers) runIndex(ctx context.Context, p queue.IndexPayload, traceID string) (indexResult, error) {
	now := h.now()

	slice, err := h.resolveWindow(ctx, p, now)
	if err != nil {
		return indexResult{}, err
	}
	segmentKey := hh.SegmentKey(p.ProfessionalRole, slice)

	page0, err := h.api.Search(ctx, hh.SearchParams{
		ProfessionalRole: p.ProfessionalRole,
		Page:             0,
		PerPage:          searchPerPage,
		DateFrom:         slice.From,
		DateTo:           slice.To,
	})
	if err != nil {
		return indexResult{}, err
	}

	if hh.ShouldSplit(page0.Found) && p.Depth < maxSplitDepth && canSplit(slice) {
		if err := h.enqueueSplit(ctx, p, slice, traceID); err != nil {
			return indexResult{}, err
		}
		// the children advance the cursor once their halves complete
		return indexResult{Found: page0.Found, PagesFetched: 1, Split: true}, nil
	}

	depths, err := h.queue.QueueDepths(ctx, queue.HydrateQueue)
	if err != nil {
		return indexResult{}, fmt.Errorf("failed to read hydrate queue depth: %w", err)
	}
	if depths.Pending+depths.Delayed > h.maxHydrateBacklog {
		h.logger.Warn().
			Str("traceId", traceID).
			Str("professionalRole", p.ProfessionalRole).
			Int64("backlog", depths.Pending+depths.Delayed).
			Int64("limit", h.maxHydrateBacklog).
			Msg("hydrate backlog over limit, not enqueueing")
		return indexResult{Found: page0.Found, PagesFetched: 1, SkippedDueToBacklog: true}, nil
	}

	seen := make(map[string]struct{})
	enqueued, err := h.enqueueHydrateItems(ctx, page0.Items, seen, queue.ReasonNew, traceID)
	if err != nil {
		return indexResult{}, err
	}

	pagesToFetch := page0.Pages
	if pagesToFetch > maxPageDepth {
		pagesToFetch = maxPageDepth
	}
	for page := 1; page < pagesToFetch; page++ {
		resp, err := h.api.Search(ctx, hh.SearchParams{
			ProfessionalRole: p.ProfessionalRole,
			Page:             page,
			PerPage:          searchPerPage,
			DateFrom:         slice.From,
			DateTo:           slice.To,
		})
		if err != nil {
			return indexResult{}, err
		}
		n, err := h.enqueueHydrateItems(ctx, resp.Items, seen, queue.ReasonNew, traceID)
		if err != nil {
			return indexResult{}, err
		}
		enqueued += n
	}

	cursor := map[string]any{
		"segmentKey":  segmentKey,
		"dateFromIso": slice.From.UTC().Format(time.RFC3339),
		"dateToIso":   slice.To.UTC().Format(time.RFC3339),
		"depth":       p.Depth,
	}
	stats := map[string]any{
		"found":        page0.Found,
		"pagesFetched": pagesToFetch,
		"enqueued":     enqueued,
		"split":        false,
	}
	if err := h.store.UpsertCursor(ctx, hhSourceID, hh.RoleCursorKey(p.ProfessionalRole), slice.To, cursor, stats); err != nil {
		return indexResult{}, err
	}

	return indexResult{Found: page0.Found, PagesFetched: pagesToFetch, Enqueued: enqueued}, nil
}

// resolveWindow picks the search window: an explicit one from the payload,
// or the persisted cursor position with a small overlap against clock skew
// and late-published vacancies, capped at the default lookback.
func (h *Handlers) resolveWindow(ctx context.Context, p queue.IndexPayload, now time.Time) (hh.TimeSlice, error) {
	if p.DateFromISO != "" && p.DateToISO != "" {
		from, err := time.Parse(time.RFC3339, p.DateFromISO)
		if err != nil {
			return hh.TimeSlice{}, fmt.Errorf("invalid dateFromIso %q: %w", p.DateFromISO, err)
		}
		to, err := time.Parse(time.RFC3339, p.DateToISO)
		if err != nil {
			return hh.TimeSlice{}, fmt.Errorf("invalid dateToIso %q: %w", p.DateToISO, err)
		}
		if !from.Before(to) {
			return hh.TimeSlice{}, errors.New("invalid time window: dateFromIso must be earlier than dateToIso")
		}
		return hh.TimeSlice{From: from, To: to}, nil
	}

	start := now.Add(-defaultLookback)
	cur, err := h.store.GetCursor(ctx, hhSourceID, hh.RoleCursorKey(p.ProfessionalRole))
	if err != nil {
		return hh.TimeSlice{}, err
	}
	if cur == nil {
		return hh.TimeSlice{From: start, To: now}, nil
	}

	from := cur.LastPolledAt.Add(-cursorOverlap)
	if from.Before(start) {
		from = start
	}
	if !from.Before(now) {
		from = now.Add(-time.Minute)
	}
	return hh.TimeSlice{From: from, To: now}, nil
}

func canSplit(slice hh.TimeSlice) bool {
	return slice.To.Sub(slice.From) >= 2*minSplitWindow
}

func (h *Handlers) enqueueSplit(ctx context.Context, p queue.IndexPayload, slice hh.TimeSlice, traceID string) error {
	left, right := hh.Split(slice)
	for _, child := range []hh.TimeSlice{left, right} {
		payload := queue.IndexPayload{
			ProfessionalRole: p.ProfessionalRole,
			DateFromISO:      child.From.UTC().Format(time.RFC3339),
			DateToISO:        child.To.UTC().Format(time.RFC3339),
			Depth:            p.Depth + 1,
			TraceID:          traceID,
		}
		if _, err := h.queue.Enqueue(ctx, queue.IndexQueue, "", payload); err != nil {
			return fmt.Errorf("failed to enqueue split window: %w", err)
		}
	}
	return nil
}

// enqueueHydrateItems fans out hydrate jobs for search items, skipping
// vacancy ids already enqueued in this run. The deterministic job id makes
// re-enqueueing an in-flight vacancy a no-op across runs too.
func (h *Handlers) enqueueHydrateItems(ctx context.Context, items []hh.SearchItem, seen map[string]struct{}, reason, traceID string) (int, error) {
	enqueued := 0
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		payload := queue.HydratePayload{VacancyID: item.ID, Reason: reason, TraceID: traceID}
		ok, err := h.queue.Enqueue(ctx, queue.HydrateQueue, hydrateJobID(reason, item.ID), payload)
		if err != nil {
			return enqueued, fmt.Errorf("failed to enqueue hydrate for vacancy %s: %w", item.ID, err)
		}
		if ok {
			enqueued++
		}
	}
	return enqueued, nil
}

func hydrateJobID(reason, vacancyID string) string {
	return fmt.Sprintf("hh-hydrate-%s-%s", reason, vacancyID)
}
