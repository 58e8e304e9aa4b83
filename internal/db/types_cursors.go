package db

import "time"

// SourceCursor is the saved progress pointer for one (source, segment)
// sub-stream. Cursor and Stats are opaque JSON blobs owned by the source.
type SourceCursor struct {
	Source       string         `json:"source"`
	SegmentKey   string         `json:"segment_key"`
	LastPolledAt time.Time      `json:"last_polled_at"`
	Cursor       map[string]any `json:"cursor,omitempty"`
	Stats        map[string]any `json:"stats,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
