// Package handlers implements the per-queue job handlers: batch source
// ingest, vacancy index/hydrate/refresh, and store garbage collection.
// Each handler decodes its payload, runs under source-health telemetry,
// and reports failures to the queue's retry policy by returning an error.
package handlers

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/ingest"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

const (
	hhSourceID = "hh"

	defaultLookback = 30 * 24 * time.Hour
	cursorOverlap   = 10 * time.Minute
	minSplitWindow  = 30 * time.Minute
	maxSplitDepth   = 8
	maxPageDepth    = 20
	searchPerPage   = 100

	archivedRecheck = 30 * 24 * time.Hour

	refreshLease        = 2 * time.Hour
	defaultRefreshBatch = 500
	maxRefreshBatch     = 2000

	defaultMaxHydrateBacklog = 5000
)

// Store is the database surface the stage handlers need. *db.DB satisfies it.
type Store interface {
	GetJobByExternalID(ctx context.Context, sourceID, externalID string) (*db.Job, error)
	TouchJob(ctx context.Context, sourceID, externalID, status string, nextCheckAt time.Time) error
	MarkJobMissing(ctx context.Context, sourceID, externalID string, recheckIn time.Duration) error
	LeaseDueForRefresh(ctx context.Context, sourceID string, limit int, lease time.Duration) ([]db.JobRef, error)
	ArchiveStaleJobs(ctx context.Context, sourceID string, olderThan, recheckIn time.Duration) (int64, error)
	DeleteStaleJobs(ctx context.Context, sourceID string, olderThan time.Duration) (int64, error)
	DistinctJobSources(ctx context.Context) ([]string, error)
	GetCursor(ctx context.Context, source, segmentKey string) (*db.SourceCursor, error)
	UpsertCursor(ctx context.Context, source, segmentKey string, lastPolledAt time.Time, cursor, stats map[string]any) error
}

// TaskQueue is the queue surface the handlers need. *queue.Client satisfies it.
type TaskQueue interface {
	Enqueue(ctx context.Context, queueName, id string, payload any) (bool, error)
	QueueDepths(ctx context.Context, queueName string) (queue.Depths, error)
}

// VacancyAPI is the outbound search-API surface. *hh.Client satisfies it.
type VacancyAPI interface {
	Search(ctx context.Context, params hh.SearchParams) (*hh.SearchResponse, error)
	Vacancy(ctx context.Context, vacancyID string) (*hh.VacancyDetail, error)
}

// Ingestor runs raw postings through the ingestion pipeline.
// *ingest.Pipeline satisfies it.
type Ingestor interface {
	Run(ctx context.Context, sourceID string, postings []ingest.RawPosting) (ingest.BatchResult, error)
}

// Options tune handler behavior. The zero value uses the defaults.
type Options struct {
	// MaxHydrateBacklog is the pending+delayed hydrate-queue depth above
	// which the index handler stops fanning out hydrate jobs.
	MaxHydrateBacklog int64

	Logger log.Logger
}

// Handlers owns the dependencies shared by all stage handlers.
type Handlers struct {
	store    Store
	queue    TaskQueue
	api      VacancyAPI
	pipeline Ingestor
	catalog  *sources.Catalog
	health   *telemetry.Recorder
	logger   log.Logger

	maxHydrateBacklog int64
	now               func() time.Time
}

// New wires the stage handlers together.
func New(store Store, q TaskQueue, api VacancyAPI, pipeline Ingestor, catalog *sources.Catalog, health *telemetry.Recorder, opts Options) *Handlers {
	maxBacklog := opts.MaxHydrateBacklog
	if maxBacklog <= 0 {
		maxBacklog = defaultMaxHydrateBacklog
	}
	return &Handlers{
		store:             store,
		queue:             q,
		api:               api,
		pipeline:          pipeline,
		catalog:           catalog,
		health:            health,
		logger:            opts.Logger,
		maxHydrateBacklog: maxBacklog,
		now:               time.Now,
	}
}

// ByQueue maps each stage queue to its handler, for worker startup.
func (h *Handlers) ByQueue() map[string]queue.Handler {
	return map[string]queue.Handler{
		queue.SourceIngestQueue: h.HandleSourceIngest,
		queue.IndexQueue:        h.HandleIndex,
		queue.HydrateQueue:      h.HandleHydrate,
		queue.RefreshQueue:      h.HandleRefresh,
		queue.GCQueue:           h.HandleGC,
	}
}
