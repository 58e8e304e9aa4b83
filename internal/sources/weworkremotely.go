package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opencruit/crawler/internal/ingest"
)

const (
	wwrFeedURL = "https://weworkremotely.com/remote-jobs.rss"
	wwrTimeout = 15 * time.Second
)

type wwrFeed struct {
	Channel struct {
		Items []wwrItem `xml:"item"`
	} `xml:"channel"`
}

type wwrItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Region      string `xml:"region"`
	Category    string `xml:"category"`
	Skills      string `xml:"skills"`
	Media       struct {
		URL string `xml:"url,attr"`
	} `xml:"content"`
}

// WeWorkRemotelyParser reads the We Work Remotely RSS feed. Item titles are
// "Company: Role"; items that do not follow that form are dropped.
type WeWorkRemotelyParser struct {
	client  *http.Client
	feedURL string
}

// NewWeWorkRemotelyParser builds the parser with production defaults.
func NewWeWorkRemotelyParser() *WeWorkRemotelyParser {
	return &WeWorkRemotelyParser{
		client:  &http.Client{Timeout: wwrTimeout},
		feedURL: wwrFeedURL,
	}
}

func (p *WeWorkRemotelyParser) Manifest() Manifest {
	return Manifest{
		ID:       "weworkremotely",
		Name:     "We Work Remotely",
		Version:  "0.1.0",
		Schedule: "0 */4 * * *",
	}
}

// Parse fetches and maps the RSS feed.
func (p *WeWorkRemotelyParser) Parse(ctx context.Context) ([]ingest.RawPosting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build weworkremotely request: %w", err)
	}
	req.Header.Set("User-Agent", remoteOKUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weworkremotely feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("weworkremotely rss returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weworkremotely feed: %w", err)
	}

	var feed wwrFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode weworkremotely feed: %w", err)
	}

	var postings []ingest.RawPosting
	for _, item := range feed.Channel.Items {
		if posting, ok := wwrToRawPosting(item); ok {
			postings = append(postings, posting)
		}
	}
	return postings, nil
}

func wwrToRawPosting(item wwrItem) (ingest.RawPosting, bool) {
	company, title, ok := splitWWRTitle(item.Title)
	if !ok {
		return ingest.RawPosting{}, false
	}

	posting := ingest.RawPosting{
		SourceID:       "weworkremotely",
		ExternalID:     "weworkremotely:" + wwrSlug(item.Link),
		URL:            item.Link,
		Title:          title,
		Company:        company,
		CompanyLogoURL: item.Media.URL,
		Location:       item.Region,
		IsRemote:       true,
		Description:    item.Description,
		Tags:           wwrTags(item.Skills, item.Category),
		ApplyURL:       item.Link,
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, item.PubDate); err == nil {
			posting.PostedAt = &t
			break
		}
	}
	return posting, true
}

func splitWWRTitle(raw string) (company, title string, ok bool) {
	idx := strings.Index(raw, ":")
	if idx == -1 {
		return "", "", false
	}
	company = strings.TrimSpace(raw[:idx])
	title = strings.TrimSpace(raw[idx+1:])
	if company == "" || title == "" {
		return "", "", false
	}
	return company, title, true
}

func wwrSlug(link string) string {
	const marker = "/remote-jobs/"
	if idx := strings.Index(link, marker); idx != -1 {
		return link[idx+len(marker):]
	}
	return link
}

func wwrTags(skills, category string) []string {
	var tags []string
	for _, s := range strings.Split(skills, ",") {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	if category != "" {
		tags = append(tags, category)
	}
	return tags
}
