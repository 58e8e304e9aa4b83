package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxLocationLength = 255

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	blockBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</div>|</h[1-6]>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)

	// "Remote, USA" / "Remote - Europe" prefixes.
	remotePrefixRe = regexp.MustCompile(`(?i)^Remote[,\s-]+(.+)$`)

	// RemoteOK appends an anti-bot marker to every description.
	remoteOKSpamRe = regexp.MustCompile(`(?s)\s*Please mention the word \*{0,2}\w+\*{0,2} and tag \S+ when applying to show you read the job post completely.*$`)
)

// NormalizeWhitespace trims and collapses runs of whitespace to single spaces.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// StripHTML converts an HTML fragment to plain text. Block-level boundaries
// become newlines so document structure survives, remaining tags are removed
// and entities decoded. Runs of blank lines are capped at one.
func StripHTML(html string) string {
	withBreaks := blockBreakRe.ReplaceAllString(html, "\n")

	var text string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		// Malformed beyond parsing: fall back to dropping tags outright.
		text = tagRe.ReplaceAllString(withBreaks, "")
	} else {
		text = doc.Text()
	}

	text = blankRunRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// StripSpamMarkers removes known anti-bot boilerplate appended by job boards.
func StripSpamMarkers(description string) string {
	return strings.TrimSpace(remoteOKSpamRe.ReplaceAllString(description, ""))
}

// NormalizeTags lowercases, trims, and deduplicates tags, dropping empties.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var result []string
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

// NormalizeLocation cleans up a location string, rewriting remote prefixes:
// "Remote, USA" becomes "USA (Remote)".
func NormalizeLocation(location string) string {
	loc := NormalizeWhitespace(location)

	if m := remotePrefixRe.FindStringSubmatch(loc); m != nil {
		loc = strings.TrimSpace(m[1]) + " (Remote)"
	}

	if len(loc) > maxLocationLength {
		// Cut on a rune boundary; a byte-index slice can split a multi-byte
		// rune and yield invalid UTF-8, which Postgres rejects.
		cut := maxLocationLength
		for cut > 0 && !utf8.RuneStart(loc[cut]) {
			cut--
		}
		loc = strings.TrimSpace(loc[:cut])
	}

	return loc
}

// Normalize applies all text cleanup to a validated posting. Pure function.
func Normalize(p ValidatedPosting) NormalizedPosting {
	out := p

	// Spam markers first: they contain markup the HTML pass would mangle.
	description := StripSpamMarkers(p.Description)
	out.Description = StripHTML(description)

	out.Title = NormalizeWhitespace(p.Title)
	out.Company = NormalizeWhitespace(p.Company)
	if p.Location != "" {
		out.Location = NormalizeLocation(p.Location)
	}
	if len(p.Tags) > 0 {
		out.Tags = NormalizeTags(p.Tags)
	}

	return NormalizedPosting{ValidatedPosting: out}
}
