// Package ingest implements the batch ingestion pipeline for candidate job
// postings: validate, normalize, fingerprint, dedup, store. Stages are pure
// except dedup and store, which talk to the canonical store through the Store
// interface.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Salary is an optional compensation range attached to a posting.
type Salary struct {
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// RawPosting is a candidate job posting as produced by a source parser,
// before any validation or cleanup.
type RawPosting struct {
	SourceID       string         `json:"sourceId" validate:"required"`
	ExternalID     string         `json:"externalId" validate:"required"`
	URL            string         `json:"url" validate:"required,url"`
	Title          string         `json:"title" validate:"required"`
	Company        string         `json:"company" validate:"required"`
	CompanyLogoURL string         `json:"companyLogoUrl,omitempty" validate:"omitempty,url"`
	Location       string         `json:"location,omitempty"`
	IsRemote       bool           `json:"isRemote,omitempty"`
	Description    string         `json:"description" validate:"required"`
	Tags           []string       `json:"tags,omitempty"`
	Salary         *Salary        `json:"salary,omitempty"`
	PostedAt       *time.Time     `json:"postedAt,omitempty"`
	ApplyURL       string         `json:"applyUrl,omitempty" validate:"omitempty,url"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// ValidatedPosting is a RawPosting that passed schema validation.
type ValidatedPosting struct {
	RawPosting
}

// NormalizedPosting is a ValidatedPosting after text cleanup. The distinct
// type keeps un-normalized data out of the fingerprint and store stages.
type NormalizedPosting struct {
	ValidatedPosting
}

// FingerprintedPosting pairs a normalized posting with its cross-source
// content fingerprint.
type FingerprintedPosting struct {
	Posting     NormalizedPosting
	Fingerprint string
}

// DedupAction says what the store stage should do with a posting.
type DedupAction string

const (
	ActionInsert DedupAction = "insert"
	ActionUpdate DedupAction = "update"
	ActionSkip   DedupAction = "skip"
)

// DedupOutcome is the dedup decision for a single fingerprinted posting.
// ExistingID is set for updates, Reason for skips.
type DedupOutcome struct {
	Action     DedupAction
	Posting    FingerprintedPosting
	ExistingID uuid.UUID
	Reason     string
}

// FingerprintOwner is an existing canonical row that claims a fingerprint,
// returned in creation order so the earliest row wins collisions.
type FingerprintOwner struct {
	Fingerprint string
	SourceID    string
	ID          uuid.UUID
}

// UpsertRow is one row handed to the store stage for persistence.
type UpsertRow struct {
	Posting     NormalizedPosting
	Fingerprint string
	ContentHash string
	NextCheckAt time.Time
}

// Store is the canonical-store surface the pipeline needs. *db.DB satisfies it.
type Store interface {
	// JobsByFingerprint returns every stored job matching any of the given
	// fingerprints, ordered by creation time ascending.
	JobsByFingerprint(ctx context.Context, fingerprints []string) ([]FingerprintOwner, error)

	// UpsertPostings writes the rows in a single statement keyed on
	// (source_id, external_id) and returns the number of rows written.
	UpsertPostings(ctx context.Context, rows []UpsertRow) (int, error)
}

// StageStats counts what happened to a batch at each pipeline stage.
type StageStats struct {
	Received           int `json:"received"`
	Validated          int `json:"validated"`
	ValidationDropped  int `json:"validationDropped"`
	Normalized         int `json:"normalized"`
	Fingerprinted      int `json:"fingerprinted"`
	DedupPlannedInsert int `json:"dedupPlannedInserts"`
	DedupPlannedUpdate int `json:"dedupPlannedUpdates"`
	DedupSkipped       int `json:"dedupSkipped"`
	Upserted           int `json:"upserted"`
}

// BatchResult is the outcome of running one batch through the pipeline.
type BatchResult struct {
	SourceID string     `json:"sourceId,omitempty"`
	Stats    StageStats `json:"stats"`
	Duration time.Duration
}
