package ingest

import "time"

// Age buckets for adaptive refresh. Fresh postings change often and are
// rechecked quickly; old postings settle down.
const (
	recheckYoung    = 12 * time.Hour
	recheckRecent   = 24 * time.Hour
	recheckAging    = 72 * time.Hour
	recheckDormant  = 7 * 24 * time.Hour
	ageYoungCutoff  = 48 * time.Hour
	ageRecentCutoff = 14 * 24 * time.Hour
	ageAgingCutoff  = 30 * 24 * time.Hour
)

// NextCheckAt returns when an active posting should next be re-checked,
// based on its age. A posting with no postedAt counts as age zero.
func NextCheckAt(postedAt *time.Time, now time.Time) time.Time {
	var age time.Duration
	if postedAt != nil && postedAt.Before(now) {
		age = now.Sub(*postedAt)
	}

	switch {
	case age < ageYoungCutoff:
		return now.Add(recheckYoung)
	case age < ageRecentCutoff:
		return now.Add(recheckRecent)
	case age < ageAgingCutoff:
		return now.Add(recheckAging)
	default:
		return now.Add(recheckDormant)
	}
}
