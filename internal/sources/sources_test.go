package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencruit/crawler/internal/ingest"
)

type staticParser struct{ id string }

func (p staticParser) Manifest() Manifest { return Manifest{ID: p.id, Schedule: "0 * * * *"} }
func (p staticParser) Parse(context.Context) ([]ingest.RawPosting, error) {
	return nil, nil
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(
		Definition{ID: "a", Kind: KindBatch, Parser: staticParser{id: "a"}},
		Definition{ID: "a", Kind: KindBatch, Parser: staticParser{id: "a"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source id")
}

func TestNewCatalogRejectsMalformedDefinitions(t *testing.T) {
	_, err := NewCatalog(Definition{ID: "a", Kind: KindBatch})
	assert.Error(t, err)

	_, err = NewCatalog(Definition{ID: "a", Kind: KindWorkflow})
	assert.Error(t, err)

	_, err = NewCatalog(Definition{Kind: KindBatch, Parser: staticParser{}})
	assert.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Len(t, c.Batch(), 2)
	assert.Len(t, c.Workflow(), 1)

	hh, ok := c.ByID("hh")
	require.True(t, ok)
	assert.Equal(t, KindWorkflow, hh.Kind)
	assert.NotNil(t, hh.SetupScheduler)

	remoteok, ok := c.ByID("remoteok")
	require.True(t, ok)
	assert.Equal(t, KindBatch, remoteok.Kind)
	assert.Equal(t, "remoteok", remoteok.Parser.Manifest().ID)

	_, ok = c.ByID("unknown")
	assert.False(t, ok)
}

func TestGCPolicyFor(t *testing.T) {
	hh := GCPolicyFor("hh")
	assert.Equal(t, GCPolicy{ArchiveAfterDays: 10, ArchivedRecheckDays: 30, DeleteAfterDays: 60}, hh)

	jobicy := GCPolicyFor("jobicy")
	assert.Equal(t, GCPolicy{ArchiveAfterDays: 30, ArchivedRecheckDays: 45, DeleteAfterDays: 120}, jobicy)

	unknown := GCPolicyFor("some-new-source")
	assert.Equal(t, defaultGCPolicy, unknown)
}

func TestKnownGCPolicySourcesSortedAndComplete(t *testing.T) {
	ids := KnownGCPolicySources()
	require.NotEmpty(t, ids)
	assert.IsType(t, []string{}, ids)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
	assert.Contains(t, ids, "hh")
	assert.Contains(t, ids, "remoteok")
}

func TestRuntimePolicyDefaultsInCatalog(t *testing.T) {
	for _, def := range Default().All() {
		assert.Greater(t, def.Runtime.Attempts, 0, "source %s", def.ID)
		assert.Greater(t, def.Runtime.Backoff, time.Duration(0), "source %s", def.ID)
	}
}
