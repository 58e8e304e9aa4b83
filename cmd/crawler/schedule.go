package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencruit/crawler/internal/scheduler"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Validate the configured schedules without running workers",
	Long: `Runs one scheduling pass against a cron registrar that is never
started: every cron spec is parsed and every workflow source's setup runs,
including any bootstrap enqueues, but no recurring task ever fires. Prints
the resulting report and exits nonzero if any source failed to schedule.`,
	RunE: runScheduleCmd,
}

func init() {
	rootCmd.AddCommand(scheduleCommand)
}

func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	cron := scheduler.NewCron(rt.logger)
	report := scheduler.ScheduleAll(ctx, cron, rt.queue, rt.hhClient, rt.catalog, schedulerOptions(rt), rt.logger)

	out := cmd.OutOrStdout()
	for _, id := range report.ScheduledBatchSources {
		fmt.Fprintf(out, "batch     %s: scheduled\n", id)
	}
	for _, id := range report.ScheduledWorkflowSources {
		if stats := report.WorkflowStats[id]; stats != nil {
			fmt.Fprintf(out, "workflow  %s: scheduled %v\n", id, stats)
		} else {
			fmt.Fprintf(out, "workflow  %s: scheduled\n", id)
		}
	}
	for _, id := range report.DisabledSources {
		fmt.Fprintf(out, "disabled  %s: no schedule configured\n", id)
	}
	for _, e := range report.BatchErrors {
		fmt.Fprintf(out, "error     %s: %v\n", e.SourceID, e.Err)
	}
	for _, e := range report.WorkflowErrors {
		fmt.Fprintf(out, "error     %s: %v\n", e.SourceID, e.Err)
	}

	if !report.OK() {
		return fmt.Errorf("%d source(s) failed to schedule", len(report.BatchErrors)+len(report.WorkflowErrors))
	}
	return nil
}
