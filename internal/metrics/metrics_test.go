package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/queue"
)

type fakeQueueInspector struct {
	depths map[string]queue.Depths
}

func (f *fakeQueueInspector) QueueDepths(_ context.Context, name string) (queue.Depths, error) {
	return f.depths[name], nil
}

type fakeStoreInspector struct {
	counts []db.JobStatusCount
	fresh  int64
	health []db.SourceHealth
}

func (f *fakeStoreInspector) CountJobsByStatus(_ context.Context) ([]db.JobStatusCount, error) {
	return f.counts, nil
}

func (f *fakeStoreInspector) CountJobsFirstSeenSince(_ context.Context, _ time.Time) (int64, error) {
	return f.fresh, nil
}

func (f *fakeStoreInspector) ListSourceHealth(_ context.Context) ([]db.SourceHealth, error) {
	return f.health, nil
}

func testCollector() *Collector {
	q := &fakeQueueInspector{depths: map[string]queue.Depths{
		"hh.hydrate": {Pending: 12, Delayed: 3, Processing: 1, Failed: 2},
	}}
	store := &fakeStoreInspector{
		counts: []db.JobStatusCount{
			{SourceID: "hh", Status: "active", Count: 1500},
			{SourceID: "remoteok", Status: "archived", Count: 40},
		},
		fresh: 77,
		health: []db.SourceHealth{
			{SourceID: "hh", Stage: "hydrate", Status: db.HealthOK, LastDurationMs: 420},
			{SourceID: "remoteok", Stage: "ingest", Status: db.HealthError, ConsecutiveFailures: 3, LastDurationMs: 15000},
		},
	}
	return NewCollector(q, store, []string{"hh.hydrate"})
}

func TestSnapshot_RendersExpositionFormat(t *testing.T) {
	body, err := testCollector().Snapshot(context.Background())
	require.NoError(t, err)

	assert.Contains(t, body, `crawler_queue_depth{queue="hh.hydrate",state="pending"} 12`)
	assert.Contains(t, body, `crawler_queue_depth{queue="hh.hydrate",state="delayed"} 3`)
	assert.Contains(t, body, `crawler_queue_depth{queue="hh.hydrate",state="failed"} 2`)
	assert.Contains(t, body, `crawler_jobs{source="hh",status="active"} 1500`)
	assert.Contains(t, body, `crawler_jobs{source="remoteok",status="archived"} 40`)
	assert.Contains(t, body, `crawler_jobs_total{status="active"} 1500`)
	assert.Contains(t, body, `crawler_jobs_total{status="archived"} 40`)
	assert.Contains(t, body, "crawler_jobs_first_seen_24h 77")
	assert.Contains(t, body, `crawler_source_health_ok{source="hh",stage="hydrate"} 1`)
	assert.Contains(t, body, `crawler_source_health_ok{source="remoteok",stage="ingest"} 0`)
	assert.Contains(t, body, `crawler_source_health_consecutive_failures{source="remoteok",stage="ingest"} 3`)
	assert.Contains(t, body, `crawler_source_health_last_duration_ms{source="hh",stage="hydrate"} 420`)
}

func TestSnapshot_TypeLinesPrecedeSamples(t *testing.T) {
	body, err := testCollector().Snapshot(context.Background())
	require.NoError(t, err)

	typeIdx := strings.Index(body, "# TYPE crawler_jobs gauge")
	sampleIdx := strings.Index(body, `crawler_jobs{source="hh"`)
	require.GreaterOrEqual(t, typeIdx, 0)
	require.Greater(t, sampleIdx, typeIdx)
}

func TestServer_ServesMetricsAndHealthz(t *testing.T) {
	srv := NewServer(":0", testCollector(), log.Logger{Level: log.PanicLevel})
	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; version=0.0.4", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "crawler_queue_depth")

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
