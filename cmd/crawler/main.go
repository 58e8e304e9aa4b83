// Package main provides the entry point for the crawler: queue workers,
// recurring-job scheduling, and one-shot batch ingest runs.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Job-posting crawl and ingestion engine",
	Long:  "Crawler polls job boards and a paginated search API, normalizes and deduplicates postings into a canonical store, and keeps them fresh with adaptive rechecks.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
