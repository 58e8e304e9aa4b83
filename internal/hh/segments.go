package hh

import (
	"fmt"
	"time"
)

// MaxResultsDepth is the API's result cap: searches matching more than this
// many vacancies are silently truncated, so wider windows must be split.
const MaxResultsDepth = 2000

// TimeSlice is a half-open publication-time window [From, To).
type TimeSlice struct {
	From time.Time
	To   time.Time
}

// ShouldSplit reports whether a search window has to be halved because its
// result count exceeds the depth cap.
func ShouldSplit(found int) bool {
	return found > MaxResultsDepth
}

// Split halves a window at its midpoint into two contiguous,
// non-overlapping sub-windows.
func Split(slice TimeSlice) (TimeSlice, TimeSlice) {
	mid := slice.From.Add(slice.To.Sub(slice.From) / 2)
	return TimeSlice{From: slice.From, To: mid}, TimeSlice{From: mid, To: slice.To}
}

// Window builds a lookback window ending at now.
func Window(now time.Time, lookback time.Duration) TimeSlice {
	return TimeSlice{From: now.Add(-lookback), To: now}
}

// SegmentKey names a (role, window) sub-stream for cursor stats.
func SegmentKey(professionalRole string, slice TimeSlice) string {
	return fmt.Sprintf("role:%s:%s:%s",
		professionalRole,
		slice.From.UTC().Format(time.RFC3339),
		slice.To.UTC().Format(time.RFC3339),
	)
}

// RoleCursorKey names the persistent cursor segment for a role.
func RoleCursorKey(professionalRole string) string {
	return "role:" + professionalRole
}
