//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Cursors_AdvanceKeepsMax(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-2 * time.Hour)

	require.NoError(t, db.UpsertCursor(ctx, testSource, "role:96", later,
		map[string]any{"depth": 0}, map[string]any{"found": 120}))

	// a sibling segment finishing late must not rewind the cursor
	require.NoError(t, db.UpsertCursor(ctx, testSource, "role:96", earlier,
		map[string]any{"depth": 1}, map[string]any{"found": 40}))

	c, err := db.GetCursor(ctx, testSource, "role:96")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.LastPolledAt.Equal(later))
	assert.EqualValues(t, 40, c.Stats["found"])
	assert.EqualValues(t, 1, c.Cursor["depth"])
}

func TestIntegration_Cursors_MissingReturnsNil(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	c, err := db.GetCursor(context.Background(), testSource, "role:none")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestIntegration_Cursors_StateRoundTrip(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertCursor(ctx, testSource, "role:96", at,
		map[string]any{"segmentKey": "role:96:a:b", "depth": 2}, nil))

	c, err := db.GetCursor(ctx, testSource, "role:96")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.LastPolledAt.Equal(at))
	assert.Equal(t, "role:96:a:b", c.Cursor["segmentKey"])
	assert.EqualValues(t, 2, c.Cursor["depth"])
}

func TestIntegration_Health_Upserts(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.RecordHealthFailure(ctx, testSource, "index", 250*time.Millisecond, "boom"))
	require.NoError(t, db.RecordHealthFailure(ctx, testSource, "index", 300*time.Millisecond, "boom again"))

	entries, err := db.ListSourceHealth(ctx)
	require.NoError(t, err)
	var h *SourceHealth
	for i := range entries {
		if entries[i].SourceID == testSource && entries[i].Stage == "index" {
			h = &entries[i]
		}
	}
	require.NotNil(t, h)
	assert.Equal(t, HealthError, h.Status)
	assert.Equal(t, 2, h.ConsecutiveFailures)
	require.NotNil(t, h.LastError)
	assert.Equal(t, "boom again", *h.LastError)

	require.NoError(t, db.RecordHealthSuccess(ctx, testSource, "index", 100*time.Millisecond))
	entries, err = db.ListSourceHealth(ctx)
	require.NoError(t, err)
	for i := range entries {
		if entries[i].SourceID == testSource && entries[i].Stage == "index" {
			h = &entries[i]
		}
	}
	assert.Equal(t, HealthOK, h.Status)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.NotNil(t, h.LastSuccessAt)
}
