package hh

import (
	"strings"
	"time"

	"github.com/opencruit/crawler/internal/ingest"
)

// ExternalID builds the stable external identifier for a vacancy.
func ExternalID(vacancyID string) string {
	return SourceID + ":" + vacancyID
}

// MapVacancy converts a vacancy detail into a raw posting for the ingestion
// pipeline.
func MapVacancy(v *VacancyDetail) ingest.RawPosting {
	company := "Unknown"
	logoURL := ""
	if v.Employer != nil {
		if v.Employer.Name != "" {
			company = v.Employer.Name
		}
		logoURL = v.Employer.LogoURLs.Original
	}

	location := ""
	if v.Address != nil && v.Address.City != "" {
		location = v.Address.City
	} else if v.Area != nil {
		location = v.Area.Name
	}

	description := v.Description
	if strings.TrimSpace(stripTagsQuick(description)) == "" {
		description = v.Name
	}

	applyURL := v.ApplyAlternateURL
	if applyURL == "" {
		applyURL = v.AlternateURL
	}

	var postedAt *time.Time
	if t, err := time.Parse(time.RFC3339, v.PublishedAt); err == nil {
		postedAt = &t
	}

	return ingest.RawPosting{
		SourceID:       SourceID,
		ExternalID:     ExternalID(v.ID),
		URL:            v.AlternateURL,
		Title:          v.Name,
		Company:        company,
		CompanyLogoURL: logoURL,
		Location:       location,
		IsRemote:       isRemote(v),
		Description:    description,
		Tags:           mapTags(v),
		Salary:         mapSalary(v),
		PostedAt:       postedAt,
		ApplyURL:       applyURL,
	}
}

// mapSalary prefers the legacy salary object, falling back to salary_range.
// A range with neither bound set carries no information and maps to nil.
func mapSalary(v *VacancyDetail) *ingest.Salary {
	r := v.Salary
	if r == nil {
		r = v.SalaryRange
	}
	if r == nil || (r.From == nil && r.To == nil) {
		return nil
	}
	return &ingest.Salary{
		Min:      r.From,
		Max:      r.To,
		Currency: r.Currency,
	}
}

// mapTags combines key skills and professional role names, deduplicated
// case-insensitively in first-seen order.
func mapTags(v *VacancyDetail) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tags = append(tags, name)
	}
	for _, s := range v.KeySkills {
		add(s.Name)
	}
	for _, r := range v.ProfessionalRoles {
		add(r.Name)
	}
	return tags
}

func isRemote(v *VacancyDetail) bool {
	if v.Schedule != nil && v.Schedule.ID == "remote" {
		return true
	}
	for _, f := range v.WorkFormat {
		if strings.EqualFold(f.ID, "remote") {
			return true
		}
	}
	return false
}

// stripTagsQuick is a cheap emptiness probe; the pipeline does real HTML
// stripping later.
func stripTagsQuick(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
