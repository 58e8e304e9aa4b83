package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencruit/crawler/internal/sources"
)

var ingestSourceID string

var ingestCommand = &cobra.Command{
	Use:   "ingest",
	Short: "Run one batch source through the ingestion pipeline and exit",
	Long: `Fetches the named batch source once, runs the postings through
validate, normalize, fingerprint, dedup, and store, and prints the
per-stage counts. Workflow sources (hh) are driven by the worker's
recurring jobs and cannot be run this way.`,
	RunE: runIngestCmd,
}

func init() {
	ingestCommand.Flags().StringVar(&ingestSourceID, "source", "", "batch source id to ingest (required)")
	_ = ingestCommand.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCommand)
}

func runIngestCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	def, ok := rt.catalog.ByID(ingestSourceID)
	if !ok {
		return fmt.Errorf("unknown source: %s", ingestSourceID)
	}
	if def.Kind != sources.KindBatch {
		return fmt.Errorf("source %s is a %s source, not a batch source", def.ID, def.Kind)
	}

	postings, err := def.Parser.Parse(ctx)
	if err != nil {
		return fmt.Errorf("parse %s: %w", def.ID, err)
	}

	result, err := rt.pipeline.Run(ctx, def.ID, postings)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", def.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"source=%s received=%d validated=%d dropped=%d dedupSkipped=%d upserted=%d duration=%s\n",
		def.ID,
		result.Stats.Received,
		result.Stats.Validated,
		result.Stats.ValidationDropped,
		result.Stats.DedupSkipped,
		result.Stats.Upserted,
		result.Duration.Round(time.Millisecond),
	)
	return nil
}
