package db

import "time"

// Health status constants
const (
	HealthOK    = "ok"
	HealthError = "error"
)

// maxHealthErrorLength bounds stored error text so a pathological response
// body cannot bloat the health table.
const maxHealthErrorLength = 4000

// SourceHealth is the latest outcome of one (source, stage) pair.
type SourceHealth struct {
	SourceID            string     `json:"source_id"`
	Stage               string     `json:"stage"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastDurationMs      int64      `json:"last_duration_ms"`
	LastRunAt           time.Time  `json:"last_run_at"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty"`
	LastError           *string    `json:"last_error,omitempty"`
}

func truncateHealthError(msg string) string {
	if len(msg) > maxHealthErrorLength {
		return msg[:maxHealthErrorLength]
	}
	return msg
}
