package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var remoteSynonymRe = regexp.MustCompile(`\b(remote|anywhere|worldwide|work from home)\b`)

// canonicalizeLocation reduces a location to its fingerprint form. Any remote
// synonym collapses to the literal token "remote" so the same remote posting
// fingerprints identically across sources.
func canonicalizeLocation(location string) string {
	if location == "" {
		return ""
	}
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(location), " "))
	if remoteSynonymRe.MatchString(normalized) {
		return "remote"
	}
	return normalized
}

// Fingerprint computes the cross-source identity hash for a posting:
// SHA-256 over lowercased company, title, and canonicalized location.
func Fingerprint(company, title, location string) string {
	input := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(company)),
		strings.ToLower(strings.TrimSpace(title)),
		canonicalizeLocation(location),
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// FingerprintPosting attaches a fingerprint to a normalized posting.
func FingerprintPosting(p NormalizedPosting) FingerprintedPosting {
	return FingerprintedPosting{
		Posting:     p,
		Fingerprint: Fingerprint(p.Company, p.Title, p.Location),
	}
}

// FingerprintBatch fingerprints a batch of normalized postings.
func FingerprintBatch(postings []NormalizedPosting) []FingerprintedPosting {
	out := make([]FingerprintedPosting, 0, len(postings))
	for _, p := range postings {
		out = append(out, FingerprintPosting(p))
	}
	return out
}
