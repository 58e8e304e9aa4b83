package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opencruit/crawler/internal/ingest"
)

const (
	remoteOKAPIURL    = "https://remoteok.com/api"
	remoteOKUserAgent = "opencruit-crawler/0.1 (+https://github.com/opencruit/crawler)"
	remoteOKTimeout   = 15 * time.Second
	remoteOKAttempts  = 3
)

var remoteOKRetryDelays = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}

type remoteOKJob struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Position    string   `json:"position"`
	Company     string   `json:"company"`
	CompanyLogo string   `json:"company_logo"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	SalaryMin   int      `json:"salary_min"`
	SalaryMax   int      `json:"salary_max"`
	ApplyURL    string   `json:"apply_url"`
	URL         string   `json:"url"`
	Date        string   `json:"date"`
}

// RemoteOKParser reads the RemoteOK public API. The feed is all-remote, so
// every posting maps with IsRemote set.
type RemoteOKParser struct {
	client  *http.Client
	baseURL string
}

// NewRemoteOKParser builds the parser with production defaults.
func NewRemoteOKParser() *RemoteOKParser {
	return &RemoteOKParser{
		client:  &http.Client{Timeout: remoteOKTimeout},
		baseURL: remoteOKAPIURL,
	}
}

func (p *RemoteOKParser) Manifest() Manifest {
	return Manifest{
		ID:       "remoteok",
		Name:     "RemoteOK",
		Version:  "0.1.0",
		Schedule: "0 */4 * * *",
	}
}

// Parse fetches the full feed and maps it to raw postings. The feed's first
// element is a legal notice and is skipped, as are rows missing a title or
// company.
func (p *RemoteOKParser) Parse(ctx context.Context) ([]ingest.RawPosting, error) {
	resp, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var feed []remoteOKJob
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode remoteok feed: %w", err)
	}
	if len(feed) > 0 {
		feed = feed[1:]
	}

	postings := make([]ingest.RawPosting, 0, len(feed))
	for _, job := range feed {
		if job.Position == "" || job.Company == "" {
			continue
		}
		postings = append(postings, p.toRawPosting(job))
	}
	return postings, nil
}

func (p *RemoteOKParser) fetch(ctx context.Context) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= remoteOKAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build remoteok request: %w", err)
		}
		req.Header.Set("User-Agent", remoteOKUserAgent)

		resp, err := p.client.Do(req)
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("remoteok api returned %d", resp.StatusCode)
			if resp.StatusCode != 429 && resp.StatusCode < 500 {
				return nil, lastErr
			}
		} else {
			lastErr = fmt.Errorf("fetch remoteok feed: %w", err)
		}

		if attempt < remoteOKAttempts {
			delay := remoteOKRetryDelays[len(remoteOKRetryDelays)-1]
			if attempt-1 < len(remoteOKRetryDelays) {
				delay = remoteOKRetryDelays[attempt-1]
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, lastErr
}

func (p *RemoteOKParser) toRawPosting(job remoteOKJob) ingest.RawPosting {
	posting := ingest.RawPosting{
		SourceID:       "remoteok",
		ExternalID:     "remoteok:" + job.ID,
		URL:            job.URL,
		Title:          job.Position,
		Company:        job.Company,
		CompanyLogoURL: job.CompanyLogo,
		Location:       job.Location,
		IsRemote:       true,
		Description:    job.Description,
		Tags:           job.Tags,
		ApplyURL:       job.ApplyURL,
	}
	if job.SalaryMin > 0 || job.SalaryMax > 0 {
		salary := &ingest.Salary{Currency: "USD"}
		if job.SalaryMin > 0 {
			salary.Min = &job.SalaryMin
		}
		if job.SalaryMax > 0 {
			salary.Max = &job.SalaryMax
		}
		posting.Salary = salary
	}
	if t, err := time.Parse(time.RFC3339, job.Date); err == nil {
		posting.PostedAt = &t
	}
	return posting
}
