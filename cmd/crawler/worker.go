package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opencruit/crawler/internal/metrics"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/scheduler"
	"github.com/opencruit/crawler/internal/sources"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "Run the stage workers, the recurring-job scheduler, and the metrics endpoint",
	Long: `Starts one consumer per stage queue (ingest, index, hydrate, refresh, gc),
registers the recurring jobs that feed them, and serves /metrics and /healthz.
Stops intake on SIGINT/SIGTERM, drains in-flight handlers, then closes the
queue and database connections.`,
	RunE: runWorkerCmd,
}

func init() {
	rootCmd.AddCommand(workerCommand)
}

func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	collector := metrics.NewCollector(rt.queue, rt.store, queue.StageQueues)
	metricsServer := metrics.NewServer(rt.cfg.MetricsAddr, collector, rt.logger)
	metricsServer.Start()
	defer metricsServer.Stop()

	cron := scheduler.NewCron(rt.logger)
	report := scheduler.ScheduleAll(ctx, cron, rt.queue, rt.hhClient, rt.catalog, schedulerOptions(rt), rt.logger)
	logScheduleReport(rt, report)

	cron.Start(ctx)
	defer cron.Stop()

	g, ctx := errgroup.WithContext(ctx)
	for queueName, handler := range rt.handlers.ByQueue() {
		worker := queue.NewWorker(rt.queue, queueName, handler, queue.WorkerOptions{
			Concurrency: rt.cfg.WorkerConcurrency,
			Logger:      rt.logger,
		})
		g.Go(func() error {
			return worker.Run(ctx)
		})
	}

	rt.logger.Info().Int("queues", len(queue.StageQueues)).Msg("workers started")
	return g.Wait()
}

func schedulerOptions(rt *runtime) scheduler.Options {
	return scheduler.Options{
		GCArchiveCron: rt.cfg.GCArchiveCron,
		GCDeleteCron:  rt.cfg.GCDeleteCron,
		Workflow: sources.WorkflowOptions{
			IndexCron:         rt.cfg.HHIndexCron,
			RefreshCron:       rt.cfg.HHRefreshCron,
			RefreshBatchSize:  rt.cfg.HHRefreshBatchSize,
			BootstrapIndexNow: rt.cfg.HHBootstrapIndexNow,
		},
	}
}

func logScheduleReport(rt *runtime, report scheduler.Report) {
	event := rt.logger.Info()
	if !report.OK() {
		event = rt.logger.Warn()
	}
	event.
		Strs("scheduledBatchSources", report.ScheduledBatchSources).
		Strs("scheduledWorkflowSources", report.ScheduledWorkflowSources).
		Strs("disabledSources", report.DisabledSources).
		Int("batchErrors", len(report.BatchErrors)).
		Int("workflowErrors", len(report.WorkflowErrors)).
		Msg("scheduler configured")
	for _, e := range report.BatchErrors {
		rt.logger.Error().Err(e.Err).Str("sourceId", e.SourceID).Msg("batch source not scheduled")
	}
	for _, e := range report.WorkflowErrors {
		rt.logger.Error().Err(e.Err).Str("sourceId", e.SourceID).Msg("workflow source not scheduled")
	}
}
