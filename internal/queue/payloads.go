package queue

import "time"

// The five stage queues. Index/hydrate/refresh belong to the hh workflow,
// ingest and gc are shared across sources.
const (
	SourceIngestQueue = "source.ingest"
	IndexQueue        = "hh.index"
	HydrateQueue      = "hh.hydrate"
	RefreshQueue      = "hh.refresh"
	GCQueue           = "source.gc"
)

// StageQueues lists every stage queue in worker start order.
var StageQueues = []string{
	SourceIngestQueue,
	IndexQueue,
	HydrateQueue,
	RefreshQueue,
	GCQueue,
}

// StagePolicies carry each queue's retry budget. Stages hitting the
// rate-limited upstream get more attempts with a short base backoff.
var StagePolicies = map[string]Policy{
	SourceIngestQueue: {MaxAttempts: 3, Backoff: 5 * time.Second, BackoffCap: 15 * time.Minute, Visibility: 10 * time.Minute},
	IndexQueue:        {MaxAttempts: 4, Backoff: 5 * time.Second, BackoffCap: 15 * time.Minute, Visibility: 10 * time.Minute},
	HydrateQueue:      {MaxAttempts: 5, Backoff: 5 * time.Second, BackoffCap: 15 * time.Minute, Visibility: 10 * time.Minute},
	RefreshQueue:      {MaxAttempts: 4, Backoff: 5 * time.Second, BackoffCap: 15 * time.Minute, Visibility: 10 * time.Minute},
	GCQueue:           {MaxAttempts: 3, Backoff: 5 * time.Second, BackoffCap: 15 * time.Minute, Visibility: 30 * time.Minute},
}

// Hydrate reasons
const (
	ReasonNew     = "new"
	ReasonRefresh = "refresh"
	ReasonRetry   = "retry"
)

// GC modes
const (
	GCModeArchive = "archive"
	GCModeDelete  = "delete"
)

// SourceIngestPayload triggers one batch parse+ingest run for a source.
type SourceIngestPayload struct {
	SourceID string `json:"sourceId"`
	TraceID  string `json:"traceId,omitempty"`
}

// IndexPayload searches one (role, window) slice. An empty window means
// "resume from the persisted cursor". Depth counts window splits.
type IndexPayload struct {
	ProfessionalRole string `json:"professionalRole"`
	DateFromISO      string `json:"dateFromIso,omitempty"`
	DateToISO        string `json:"dateToIso,omitempty"`
	Depth            int    `json:"depth,omitempty"`
	TraceID          string `json:"traceId,omitempty"`
}

// HydratePayload fetches and ingests one vacancy's detail record.
type HydratePayload struct {
	VacancyID string `json:"vacancyId"`
	Reason    string `json:"reason"`
	TraceID   string `json:"traceId,omitempty"`
}

// RefreshPayload leases due jobs and fans out hydrate work.
type RefreshPayload struct {
	BatchSize int    `json:"batchSize,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

// GCPayload archives or deletes stale jobs, for one source or all.
type GCPayload struct {
	Mode     string `json:"mode"`
	SourceID string `json:"sourceId,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}
