// Package scheduler registers the recurring jobs that drive the crawl:
// one ingest enqueue per batch source, the store GC sweeps, and each
// workflow source's own recurring jobs. A source that cannot be scheduled
// is reported and skipped; it never aborts the pass.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

const (
	defaultGCArchiveCron = "0 3 */3 * *"
	defaultGCDeleteCron  = "0 4 * * 1"

	scheduleEnvPrefix = "PARSER_SCHEDULE_"
)

// Options tune a scheduling pass. Zero values fall back to the defaults.
type Options struct {
	// ScheduleOverrides pins a cron spec per source id, winning over the
	// environment and the catalog.
	ScheduleOverrides map[string]string

	// Env resolves environment overrides; defaults to os.Getenv.
	Env func(string) string

	GCArchiveCron string
	GCDeleteCron  string

	Workflow sources.WorkflowOptions

	Now func() time.Time
}

// SourceError ties a scheduling failure to the source that caused it.
type SourceError struct {
	SourceID string
	Err      error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

// Report is the outcome of one scheduling pass.
type Report struct {
	ScheduledBatchSources    []string
	ScheduledWorkflowSources []string
	DisabledSources          []string
	BatchErrors              []SourceError
	WorkflowErrors           []SourceError
	WorkflowStats            map[string]map[string]any
}

// OK reports whether every source scheduled cleanly.
func (r Report) OK() bool {
	return len(r.BatchErrors) == 0 && len(r.WorkflowErrors) == 0
}

// ScheduleAll registers every catalog source plus the GC sweeps on the
// registrar. Batch sources get a recurring ingest enqueue; workflow sources
// run their own setup callback.
func ScheduleAll(ctx context.Context, registrar sources.CronRegistrar, q sources.Enqueuer, roles sources.RoleLister, catalog *sources.Catalog, opts Options, logger log.Logger) Report {
	env := opts.Env
	if env == nil {
		env = os.Getenv
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	report := Report{WorkflowStats: make(map[string]map[string]any)}

	for _, def := range catalog.Batch() {
		spec := resolveSchedule(def, opts.ScheduleOverrides, env)
		if spec == "" {
			logger.Warn().Str("sourceId", def.ID).Msg("source has no schedule, disabling")
			report.DisabledSources = append(report.DisabledSources, def.ID)
			continue
		}

		if err := registerIngest(registrar, q, def.ID, spec, logger); err != nil {
			logger.Error().Err(err).Str("sourceId", def.ID).Str("schedule", spec).Msg("failed to schedule batch source")
			report.BatchErrors = append(report.BatchErrors, SourceError{SourceID: def.ID, Err: err})
			continue
		}
		report.ScheduledBatchSources = append(report.ScheduledBatchSources, def.ID)
	}

	for _, def := range catalog.Workflow() {
		wc := sources.WorkflowContext{
			Registrar: registrar,
			Queue:     q,
			Roles:     roles,
			Options:   opts.Workflow,
			Logger:    logger,
			Now:       now,
		}
		result, err := def.SetupScheduler(ctx, wc)
		if err != nil {
			logger.Error().Err(err).Str("sourceId", def.ID).Msg("failed to schedule workflow source")
			report.WorkflowErrors = append(report.WorkflowErrors, SourceError{SourceID: def.ID, Err: err})
			continue
		}
		report.ScheduledWorkflowSources = append(report.ScheduledWorkflowSources, def.ID)
		if result.Stats != nil {
			report.WorkflowStats[def.ID] = result.Stats
		}
	}

	if err := registerGC(registrar, q, opts, logger); err != nil {
		report.BatchErrors = append(report.BatchErrors, SourceError{SourceID: "gc", Err: err})
	}

	return report
}

// resolveSchedule picks the recurrence for a batch source: explicit
// override, then environment, then the catalog entry, then the parser's
// own manifest default.
func resolveSchedule(def sources.Definition, overrides map[string]string, env func(string) string) string {
	if spec := overrides[def.ID]; spec != "" {
		return spec
	}
	if spec := env(scheduleEnvKey(def.ID)); spec != "" {
		return spec
	}
	if def.Schedule != "" {
		return def.Schedule
	}
	if def.Parser != nil {
		return def.Parser.Manifest().Schedule
	}
	return ""
}

func scheduleEnvKey(sourceID string) string {
	key := strings.ToUpper(sourceID)
	key = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, key)
	return scheduleEnvPrefix + key
}

func registerIngest(registrar sources.CronRegistrar, q sources.Enqueuer, sourceID, spec string, logger log.Logger) error {
	jobID := "source-ingest-" + sourceID
	return registrar.Schedule(spec, jobID, func(ctx context.Context) {
		payload := queue.SourceIngestPayload{
			SourceID: sourceID,
			TraceID:  telemetry.EnsureTraceID(""),
		}
		// the deterministic id drops the tick if the previous run is
		// still in flight
		if _, err := q.Enqueue(ctx, queue.SourceIngestQueue, jobID, payload); err != nil {
			logger.Error().Err(err).Str("sourceId", sourceID).Msg("failed to enqueue source ingest")
		}
	})
}

func registerGC(registrar sources.CronRegistrar, q sources.Enqueuer, opts Options, logger log.Logger) error {
	archiveCron := opts.GCArchiveCron
	if archiveCron == "" {
		archiveCron = defaultGCArchiveCron
	}
	deleteCron := opts.GCDeleteCron
	if deleteCron == "" {
		deleteCron = defaultGCDeleteCron
	}

	sweeps := []struct {
		spec string
		mode string
	}{
		{archiveCron, queue.GCModeArchive},
		{deleteCron, queue.GCModeDelete},
	}
	for _, sweep := range sweeps {
		mode := sweep.mode
		jobID := "source-gc-" + mode
		err := registrar.Schedule(sweep.spec, jobID, func(ctx context.Context) {
			payload := queue.GCPayload{Mode: mode, TraceID: telemetry.EnsureTraceID("")}
			if _, err := q.Enqueue(ctx, queue.GCQueue, jobID, payload); err != nil {
				logger.Error().Err(err).Str("mode", mode).Msg("failed to enqueue gc sweep")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule gc %s: %w", mode, err)
		}
	}
	return nil
}
