package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteOKFixture = `[
	{"legal": "API terms apply"},
	{
		"id": "100",
		"slug": "go-engineer",
		"position": "Go Engineer",
		"company": "Acme",
		"company_logo": "https://remoteok.com/logo.png",
		"location": "Worldwide",
		"tags": ["golang", "backend"],
		"description": "Build things.",
		"salary_min": 90000,
		"salary_max": 120000,
		"apply_url": "https://remoteok.com/l/100",
		"url": "https://remoteok.com/remote-jobs/100",
		"date": "2025-05-20T10:00:00+00:00"
	},
	{
		"id": "101",
		"position": "",
		"company": "NoTitle Inc",
		"url": "https://remoteok.com/remote-jobs/101"
	}
]`

func TestRemoteOKParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(remoteOKFixture))
	}))
	defer srv.Close()

	p := NewRemoteOKParser()
	p.baseURL = srv.URL

	postings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 1)

	job := postings[0]
	assert.Equal(t, "remoteok", job.SourceID)
	assert.Equal(t, "remoteok:100", job.ExternalID)
	assert.Equal(t, "Go Engineer", job.Title)
	assert.Equal(t, "Acme", job.Company)
	assert.True(t, job.IsRemote)
	require.NotNil(t, job.Salary)
	assert.Equal(t, 90000, *job.Salary.Min)
	assert.Equal(t, "USD", job.Salary.Currency)
	require.NotNil(t, job.PostedAt)
}

func TestRemoteOKParseRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"legal":"notice"}]`))
	}))
	defer srv.Close()

	p := NewRemoteOKParser()
	p.baseURL = srv.URL

	postings, err := p.Parse(context.Background())
	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.Equal(t, 2, calls)
}

func TestRemoteOKParseDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewRemoteOKParser()
	p.baseURL = srv.URL

	_, err := p.Parse(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
