package db

import (
	"time"

	"github.com/google/uuid"
)

// Job lifecycle status constants
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusMissing  = "missing"
)

// Job is a canonical job posting row, unique on (source_id, external_id).
type Job struct {
	ID             uuid.UUID  `json:"id"`
	SourceID       string     `json:"source_id"`
	ExternalID     string     `json:"external_id"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	CompanyLogoURL *string    `json:"company_logo_url,omitempty"`
	Location       *string    `json:"location,omitempty"`
	IsRemote       bool       `json:"is_remote"`
	Description    string     `json:"description"`
	Tags           []string   `json:"tags,omitempty"`
	SalaryMin      *int       `json:"salary_min,omitempty"`
	SalaryMax      *int       `json:"salary_max,omitempty"`
	SalaryCurrency *string    `json:"salary_currency,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	ApplyURL       *string    `json:"apply_url,omitempty"`

	Fingerprint string `json:"fingerprint"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`

	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	NextCheckAt   time.Time `json:"next_check_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobRef identifies one job for refresh processing.
type JobRef struct {
	SourceID   string `json:"source_id"`
	ExternalID string `json:"external_id"`
}

// JobStatusCount is one (source, status) bucket of the jobs table.
type JobStatusCount struct {
	SourceID string `json:"source_id"`
	Status   string `json:"status"`
	Count    int64  `json:"count"`
}

// nullableString maps an empty string to NULL for optional text columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
