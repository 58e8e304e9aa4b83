package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/phuslu/log"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/ingest"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

// ---- fakes ----

type fakeStore struct {
	jobs    map[string]*db.Job
	cursors map[string]*db.SourceCursor

	touched  []string
	missing  []string
	upserted []string

	leaseRefs    []db.JobRef
	leaseCalls   []int
	leaseSources []string

	jobSources []string
	archiveLog []string
	deleteLog  []string
	archiveN   int64
	deleteN    int64
	archiveErr map[string]error

	upsertCursorCalls []cursorWrite
}

type cursorWrite struct {
	Source       string
	SegmentKey   string
	LastPolledAt time.Time
	Cursor       map[string]any
	Stats        map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[string]*db.Job),
		cursors: make(map[string]*db.SourceCursor),
	}
}

func jobKey(sourceID, externalID string) string { return sourceID + "/" + externalID }

func (f *fakeStore) GetJobByExternalID(_ context.Context, sourceID, externalID string) (*db.Job, error) {
	return f.jobs[jobKey(sourceID, externalID)], nil
}

func (f *fakeStore) TouchJob(_ context.Context, sourceID, externalID, status string, _ time.Time) error {
	f.touched = append(f.touched, jobKey(sourceID, externalID)+":"+status)
	return nil
}

func (f *fakeStore) MarkJobMissing(_ context.Context, sourceID, externalID string, _ time.Duration) error {
	f.missing = append(f.missing, jobKey(sourceID, externalID))
	return nil
}

func (f *fakeStore) LeaseDueForRefresh(_ context.Context, sourceID string, limit int, _ time.Duration) ([]db.JobRef, error) {
	f.leaseSources = append(f.leaseSources, sourceID)
	f.leaseCalls = append(f.leaseCalls, limit)
	return f.leaseRefs, nil
}

func (f *fakeStore) ArchiveStaleJobs(_ context.Context, sourceID string, _, _ time.Duration) (int64, error) {
	if err := f.archiveErr[sourceID]; err != nil {
		return 0, err
	}
	f.archiveLog = append(f.archiveLog, sourceID)
	return f.archiveN, nil
}

func (f *fakeStore) DeleteStaleJobs(_ context.Context, sourceID string, _ time.Duration) (int64, error) {
	f.deleteLog = append(f.deleteLog, sourceID)
	return f.deleteN, nil
}

func (f *fakeStore) DistinctJobSources(_ context.Context) ([]string, error) {
	return f.jobSources, nil
}

func (f *fakeStore) GetCursor(_ context.Context, source, segmentKey string) (*db.SourceCursor, error) {
	return f.cursors[source+"/"+segmentKey], nil
}

func (f *fakeStore) UpsertCursor(_ context.Context, source, segmentKey string, lastPolledAt time.Time, cursor, stats map[string]any) error {
	f.upsertCursorCalls = append(f.upsertCursorCalls, cursorWrite{
		Source:       source,
		SegmentKey:   segmentKey,
		LastPolledAt: lastPolledAt,
		Cursor:       cursor,
		Stats:        stats,
	})
	return nil
}

type enqueuedJob struct {
	Queue   string
	ID      string
	Payload any
}

type fakeQueue struct {
	enqueued []enqueuedJob
	ids      map[string]struct{}
	depths   queue.Depths
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{ids: make(map[string]struct{})}
}

func (f *fakeQueue) Enqueue(_ context.Context, queueName, id string, payload any) (bool, error) {
	if id != "" {
		if _, dup := f.ids[queueName+"/"+id]; dup {
			return false, nil
		}
		f.ids[queueName+"/"+id] = struct{}{}
	}
	f.enqueued = append(f.enqueued, enqueuedJob{Queue: queueName, ID: id, Payload: payload})
	return true, nil
}

func (f *fakeQueue) QueueDepths(_ context.Context, _ string) (queue.Depths, error) {
	return f.depths, nil
}

func (f *fakeQueue) byQueue(name string) []enqueuedJob {
	var out []enqueuedJob
	for _, j := range f.enqueued {
		if j.Queue == name {
			out = append(out, j)
		}
	}
	return out
}

type fakeAPI struct {
	searches    []hh.SearchParams
	pages       map[int]*hh.SearchResponse
	searchErr   error
	vacancy     *hh.VacancyDetail
	vacancyErr  error
	vacancyGets []string
}

func (f *fakeAPI) Search(_ context.Context, params hh.SearchParams) (*hh.SearchResponse, error) {
	f.searches = append(f.searches, params)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	resp, ok := f.pages[params.Page]
	if !ok {
		return &hh.SearchResponse{Page: params.Page}, nil
	}
	return resp, nil
}

func (f *fakeAPI) Vacancy(_ context.Context, vacancyID string) (*hh.VacancyDetail, error) {
	f.vacancyGets = append(f.vacancyGets, vacancyID)
	if f.vacancyErr != nil {
		return nil, f.vacancyErr
	}
	return f.vacancy, nil
}

type fakePipeline struct {
	runs    [][]ingest.RawPosting
	sources []string
	result  ingest.BatchResult
	err     error
}

func (f *fakePipeline) Run(_ context.Context, sourceID string, postings []ingest.RawPosting) (ingest.BatchResult, error) {
	f.sources = append(f.sources, sourceID)
	f.runs = append(f.runs, postings)
	if f.err != nil {
		return ingest.BatchResult{}, f.err
	}
	return f.result, nil
}

type fakeHealth struct {
	successes []string
	failures  []string
}

func (f *fakeHealth) RecordHealthSuccess(_ context.Context, sourceID, stage string, _ time.Duration) error {
	f.successes = append(f.successes, sourceID+"/"+stage)
	return nil
}

func (f *fakeHealth) RecordHealthFailure(_ context.Context, sourceID, stage string, _ time.Duration, _ string) error {
	f.failures = append(f.failures, sourceID+"/"+stage)
	return nil
}

// ---- harness ----

type testEnv struct {
	handlers *Handlers
	store    *fakeStore
	queue    *fakeQueue
	api      *fakeAPI
	pipeline *fakePipeline
	health   *fakeHealth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newFakeStore(),
		queue:    newFakeQueue(),
		api:      &fakeAPI{pages: make(map[int]*hh.SearchResponse)},
		pipeline: &fakePipeline{},
		health:   &fakeHealth{},
	}
	logger := log.Logger{Level: log.PanicLevel}
	recorder := telemetry.NewRecorder(env.health, logger)
	env.handlers = New(env.store, env.queue, env.api, env.pipeline, sources.Default(), recorder, Options{Logger: logger})
	env.handlers.now = func() time.Time {
		return time.Date(2026, 2, 23, 4, 0, 0, 0, time.UTC)
	}
	return env
}

func queueJob(t *testing.T, queueName string, payload any) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{ID: "test-job", Queue: queueName, Payload: raw}
}
