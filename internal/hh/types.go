// Package hh wraps the HeadHunter vacancy search API behind a serialized,
// rate-limited, retrying, circuit-breaking client, and provides the
// time-slice windowing used to index around the API's result-depth cap.
package hh

import "time"

// SourceID is the catalog identifier for this source.
const SourceID = "hh"

// Employer is the hiring organization attached to a vacancy.
type Employer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LogoURLs struct {
		Original string `json:"original,omitempty"`
	} `json:"logo_urls,omitempty"`
}

// Area is the geographic region a vacancy is attached to.
type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Schedule is the vacancy work schedule (e.g. "remote").
type Schedule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SalaryRange is the advertised compensation for a vacancy.
type SalaryRange struct {
	From     *int   `json:"from"`
	To       *int   `json:"to"`
	Currency string `json:"currency"`
	Gross    bool   `json:"gross,omitempty"`
}

// ProfessionalRole is one entry of the roles taxonomy.
type ProfessionalRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchItem is a single vacancy as returned by the search endpoint.
type SearchItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	AlternateURL string    `json:"alternate_url"`
	PublishedAt  string    `json:"published_at"`
	CreatedAt    string    `json:"created_at"`
	Archived     bool      `json:"archived"`
	Employer     *Employer `json:"employer,omitempty"`
	Area         *Area     `json:"area,omitempty"`
	Schedule     *Schedule `json:"schedule,omitempty"`
}

// SearchResponse is a page of vacancy search results. Found reports the
// total match count, which the API truncates past the depth cap.
type SearchResponse struct {
	Items   []SearchItem `json:"items"`
	Found   int          `json:"found"`
	Pages   int          `json:"pages"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
}

// KeySkill is a skill tag on a vacancy detail.
type KeySkill struct {
	Name string `json:"name"`
}

// WorkFormat is a vacancy work format entry (e.g. "REMOTE").
type WorkFormat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Address is the street-level location on a vacancy detail.
type Address struct {
	City string `json:"city,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// VacancyDetail is the full record for a single vacancy.
type VacancyDetail struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Archived          bool               `json:"archived"`
	PublishedAt       string             `json:"published_at"`
	AlternateURL      string             `json:"alternate_url"`
	ApplyAlternateURL string             `json:"apply_alternate_url,omitempty"`
	Employer          *Employer          `json:"employer,omitempty"`
	Area              *Area              `json:"area,omitempty"`
	Address           *Address           `json:"address,omitempty"`
	Schedule          *Schedule          `json:"schedule,omitempty"`
	Salary            *SalaryRange       `json:"salary,omitempty"`
	SalaryRange       *SalaryRange       `json:"salary_range,omitempty"`
	KeySkills         []KeySkill         `json:"key_skills,omitempty"`
	ProfessionalRoles []ProfessionalRole `json:"professional_roles,omitempty"`
	WorkFormat        []WorkFormat       `json:"work_format,omitempty"`
}

// RoleCategory groups professional roles in the taxonomy response.
type RoleCategory struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Roles []ProfessionalRole `json:"roles"`
}

// RolesResponse is the professional-roles taxonomy.
type RolesResponse struct {
	Categories []RoleCategory `json:"categories"`
}

// SearchParams are the query parameters for a vacancy search call.
type SearchParams struct {
	ProfessionalRole string
	Page             int
	PerPage          int
	DateFrom         time.Time
	DateTo           time.Time
	OrderBy          string
}
