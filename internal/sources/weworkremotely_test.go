package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wwrFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>We Work Remotely</title>
    <item>
      <title>Acme: Senior Go Engineer</title>
      <link>https://weworkremotely.com/remote-jobs/acme-senior-go-engineer</link>
      <description>Build remote systems.</description>
      <pubDate>Tue, 20 May 2025 10:00:00 +0000</pubDate>
      <region>Anywhere in the World</region>
      <category>Programming</category>
      <skills>Go, PostgreSQL</skills>
      <media:content url="https://wwr.com/logo.png"/>
    </item>
    <item>
      <title>Malformed title without separator</title>
      <link>https://weworkremotely.com/remote-jobs/malformed</link>
      <description>Dropped.</description>
      <pubDate>Tue, 20 May 2025 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func TestWeWorkRemotelyParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(wwrFixture))
	}))
	defer srv.Close()

	p := NewWeWorkRemotelyParser()
	p.feedURL = srv.URL

	postings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 1)

	job := postings[0]
	assert.Equal(t, "weworkremotely", job.SourceID)
	assert.Equal(t, "weworkremotely:acme-senior-go-engineer", job.ExternalID)
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.Equal(t, "Anywhere in the World", job.Location)
	assert.Equal(t, []string{"Go", "PostgreSQL", "Programming"}, job.Tags)
	assert.Equal(t, "https://wwr.com/logo.png", job.CompanyLogoURL)
	require.NotNil(t, job.PostedAt)
	assert.Equal(t, 2025, job.PostedAt.Year())
}

func TestWeWorkRemotelyParseErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewWeWorkRemotelyParser()
	p.feedURL = srv.URL

	_, err := p.Parse(context.Background())
	assert.Error(t, err)
}

func TestSplitWWRTitle(t *testing.T) {
	tests := []struct {
		raw     string
		company string
		title   string
		ok      bool
	}{
		{"Acme: Engineer", "Acme", "Engineer", true},
		{"Acme Inc.: Staff Engineer: Platform", "Acme Inc.", "Staff Engineer: Platform", true},
		{"No separator here", "", "", false},
		{": Missing company", "", "", false},
		{"Missing title:", "", "", false},
	}
	for _, tt := range tests {
		company, title, ok := splitWWRTitle(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.company, company, tt.raw)
		assert.Equal(t, tt.title, title, tt.raw)
	}
}
