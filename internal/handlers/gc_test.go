package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
)

func TestGC_ArchiveSweepsExplicitSource(t *testing.T) {
	env := newTestEnv(t)
	env.store.archiveN = 3

	job := queueJob(t, queue.GCQueue, queue.GCPayload{Mode: queue.GCModeArchive, SourceID: "remoteok"})
	require.NoError(t, env.handlers.HandleGC(context.Background(), job))

	assert.Equal(t, []string{"remoteok"}, env.store.archiveLog)
	assert.Empty(t, env.store.deleteLog)
	assert.Equal(t, []string{"remoteok/gc"}, env.health.successes)
}

func TestGC_DeleteSweepsAllKnownAndStoredSources(t *testing.T) {
	env := newTestEnv(t)
	env.store.jobSources = []string{"hh", "customboard"}

	job := queueJob(t, queue.GCQueue, queue.GCPayload{Mode: queue.GCModeDelete})
	require.NoError(t, env.handlers.HandleGC(context.Background(), job))

	want := map[string]struct{}{"customboard": {}}
	for _, id := range sources.KnownGCPolicySources() {
		want[id] = struct{}{}
	}
	assert.Len(t, env.store.deleteLog, len(want))
	for _, id := range env.store.deleteLog {
		_, ok := want[id]
		assert.True(t, ok, "unexpected source %s swept", id)
	}
	// stored-but-unknown sources fall under the default policy
	assert.Contains(t, env.store.deleteLog, "customboard")
}

func TestGC_OneFailingSourceDoesNotStopTheSweep(t *testing.T) {
	env := newTestEnv(t)
	env.store.jobSources = []string{"hh", "remoteok", "jobicy"}
	env.store.archiveErr = map[string]error{"hh": errors.New("deadlock")}

	job := queueJob(t, queue.GCQueue, queue.GCPayload{Mode: queue.GCModeArchive})
	err := env.handlers.HandleGC(context.Background(), job)
	require.Error(t, err)

	// the failing source is skipped, the rest are still swept
	assert.NotContains(t, env.store.archiveLog, "hh")
	assert.Contains(t, env.store.archiveLog, "remoteok")
	assert.Contains(t, env.store.archiveLog, "jobicy")
	assert.Contains(t, env.health.failures, "hh/gc")
}

func TestGC_UnknownModeFails(t *testing.T) {
	env := newTestEnv(t)

	job := queueJob(t, queue.GCQueue, queue.GCPayload{Mode: "compact"})
	require.Error(t, env.handlers.HandleGC(context.Background(), job))
	assert.Empty(t, env.store.archiveLog)
	assert.Empty(t, env.store.deleteLog)
}
