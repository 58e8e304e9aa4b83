package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/queue"
)

func searchPage(found, pages int, ids ...string) *hh.SearchResponse {
	items := make([]hh.SearchItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, hh.SearchItem{ID: id, Name: "Engineer " + id})
	}
	return &hh.SearchResponse{Items: items, Found: found, Pages: pages}
}

func TestIndex_OverCapWindowSplitsInHalf(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(2001, 21, "1", "2")

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T04:00:00Z",
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	children := env.queue.byQueue(queue.IndexQueue)
	require.Len(t, children, 2)

	left := children[0].Payload.(queue.IndexPayload)
	right := children[1].Payload.(queue.IndexPayload)
	assert.Equal(t, "2026-02-23T00:00:00Z", left.DateFromISO)
	assert.Equal(t, "2026-02-23T02:00:00Z", left.DateToISO)
	assert.Equal(t, "2026-02-23T02:00:00Z", right.DateFromISO)
	assert.Equal(t, "2026-02-23T04:00:00Z", right.DateToISO)
	assert.Equal(t, 1, left.Depth)
	assert.Equal(t, 1, right.Depth)

	assert.Empty(t, env.queue.byQueue(queue.HydrateQueue))
	assert.Empty(t, env.store.upsertCursorCalls, "split must not advance the cursor")
	assert.Len(t, env.api.searches, 1)
}

func TestIndex_SplitStopsAtMaxDepth(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(2001, 1, "1")

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T04:00:00Z",
		Depth:            maxSplitDepth,
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	assert.Empty(t, env.queue.byQueue(queue.IndexQueue))
	assert.Len(t, env.queue.byQueue(queue.HydrateQueue), 1)
}

func TestIndex_NarrowWindowIsNotSplit(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(2001, 1, "1")

	// 45 minutes is under twice the minimum split window
	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T00:45:00Z",
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	assert.Empty(t, env.queue.byQueue(queue.IndexQueue))
	assert.Len(t, env.queue.byQueue(queue.HydrateQueue), 1)
}

func TestIndex_FetchesPagesAndEnqueuesHydrate(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(250, 3, "10", "11")
	env.api.pages[1] = searchPage(250, 3, "12", "10") // 10 repeats across pages
	env.api.pages[2] = searchPage(250, 3, "13")

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T04:00:00Z",
		TraceID:          "trace-1",
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	hydrates := env.queue.byQueue(queue.HydrateQueue)
	require.Len(t, hydrates, 4)
	assert.Equal(t, "hh-hydrate-new-10", hydrates[0].ID)
	first := hydrates[0].Payload.(queue.HydratePayload)
	assert.Equal(t, "10", first.VacancyID)
	assert.Equal(t, queue.ReasonNew, first.Reason)
	assert.Equal(t, "trace-1", first.TraceID)

	require.Len(t, env.store.upsertCursorCalls, 1)
	cw := env.store.upsertCursorCalls[0]
	assert.Equal(t, "hh", cw.Source)
	assert.Equal(t, "role:96", cw.SegmentKey)
	assert.True(t, cw.LastPolledAt.Equal(time.Date(2026, 2, 23, 4, 0, 0, 0, time.UTC)))
	assert.Equal(t, 250, cw.Stats["found"])
	assert.Equal(t, 3, cw.Stats["pagesFetched"])
	assert.Equal(t, 4, cw.Stats["enqueued"])
	assert.Equal(t, false, cw.Stats["split"])
	assert.Equal(t, 0, cw.Cursor["depth"])
}

func TestIndex_PageFetchIsCapped(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(1999, 60, "1")

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T04:00:00Z",
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	assert.Len(t, env.api.searches, maxPageDepth)
}

func TestIndex_BacklogGuardSkipsEnqueueAndCursor(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(100, 1, "1", "2")
	env.queue.depths = queue.Depths{Pending: 4000, Delayed: 1500}

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T00:00:00Z",
		DateToISO:        "2026-02-23T04:00:00Z",
	})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	assert.Empty(t, env.queue.byQueue(queue.HydrateQueue))
	assert.Empty(t, env.store.upsertCursorCalls)
}

func TestIndex_WindowResumesFromCursorWithOverlap(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 23, 4, 0, 0, 0, time.UTC)
	polled := now.Add(-6 * time.Hour)
	env.store.cursors["hh/role:96"] = &db.SourceCursor{
		Source:       "hh",
		SegmentKey:   "role:96",
		LastPolledAt: polled,
	}
	env.api.pages[0] = searchPage(10, 1, "1")

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{ProfessionalRole: "96"})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	require.NotEmpty(t, env.api.searches)
	assert.True(t, env.api.searches[0].DateFrom.Equal(polled.Add(-cursorOverlap)))
	assert.True(t, env.api.searches[0].DateTo.Equal(now))
}

func TestIndex_FutureCursorClampsToOneMinute(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 23, 4, 0, 0, 0, time.UTC)
	env.store.cursors["hh/role:96"] = &db.SourceCursor{
		Source:       "hh",
		SegmentKey:   "role:96",
		LastPolledAt: now.Add(time.Hour),
	}
	env.api.pages[0] = searchPage(0, 0)

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{ProfessionalRole: "96"})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	require.NotEmpty(t, env.api.searches)
	assert.True(t, env.api.searches[0].DateFrom.Equal(now.Add(-time.Minute)))
}

func TestIndex_EmptyCursorUsesDefaultLookback(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 23, 4, 0, 0, 0, time.UTC)
	env.api.pages[0] = searchPage(0, 0)

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{ProfessionalRole: "96"})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	require.NotEmpty(t, env.api.searches)
	assert.True(t, env.api.searches[0].DateFrom.Equal(now.Add(-defaultLookback)))
}

func TestIndex_InvertedExplicitWindowFails(t *testing.T) {
	env := newTestEnv(t)

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{
		ProfessionalRole: "96",
		DateFromISO:      "2026-02-23T04:00:00Z",
		DateToISO:        "2026-02-23T00:00:00Z",
	})
	err := env.handlers.HandleIndex(context.Background(), job)
	require.Error(t, err)
	assert.Empty(t, env.api.searches)
	assert.Equal(t, []string{"hh/index"}, env.health.failures)
}

func TestIndex_SuccessRecordsHealth(t *testing.T) {
	env := newTestEnv(t)
	env.api.pages[0] = searchPage(0, 0)

	job := queueJob(t, queue.IndexQueue, queue.IndexPayload{ProfessionalRole: "96"})
	require.NoError(t, env.handlers.HandleIndex(context.Background(), job))

	assert.Equal(t, []string{"hh/index"}, env.health.successes)
}
