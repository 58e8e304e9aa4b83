package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ContentHash hashes the mutable fields of a posting. Hydration compares it
// against the stored value to skip redundant writes when nothing changed.
func ContentHash(title, description string, salaryMin, salaryMax *int) string {
	parts := []string{title, description, intOrEmpty(salaryMin), intOrEmpty(salaryMax)}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ContentHashFor computes the content hash of a normalized posting.
func ContentHashFor(p NormalizedPosting) string {
	var min, max *int
	if p.Salary != nil {
		min, max = p.Salary.Min, p.Salary.Max
	}
	return ContentHash(p.Title, p.Description, min, max)
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
