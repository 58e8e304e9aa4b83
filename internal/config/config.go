// Package config loads the crawler's runtime configuration from the
// environment. Load fails fast on missing required values; every tunable
// has a default matching production behavior.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRedisURL    = "redis://localhost:6379"
	defaultHHUserAgent = "OpenCruit (dev@opencruit.dev)"
	defaultMetricsAddr = ":9090"
)

// Config is the full runtime configuration of the crawler process.
type Config struct {
	DatabaseURL string
	RedisURL    string
	MetricsAddr string

	// Outbound search-API client
	HHUserAgent               string
	HHAccessToken             string
	HHMinDelay                time.Duration
	HHMaxDelay                time.Duration
	HHTimeout                 time.Duration
	HHMaxRetries              int
	HHCircuitFailureThreshold int
	HHCircuitOpen             time.Duration

	// Workflow scheduling
	HHIndexCron         string
	HHRefreshCron       string
	HHRefreshBatchSize  int
	HHBootstrapIndexNow bool
	HHHydrateMaxBacklog int

	GCArchiveCron string
	GCDeleteCron  string

	WorkerConcurrency int
}

// Load reads the configuration from the environment. DATABASE_URL is the
// only required variable.
func Load() (*Config, error) {
	databaseURL, err := requiredEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL: databaseURL,
		RedisURL:    stringEnv("REDIS_URL", defaultRedisURL),
		MetricsAddr: stringEnv("METRICS_ADDR", defaultMetricsAddr),

		HHUserAgent:               stringEnv("HH_USER_AGENT", defaultHHUserAgent),
		HHAccessToken:             os.Getenv("HH_ACCESS_TOKEN"),
		HHMinDelay:                msEnv("HH_MIN_DELAY_MS", 2000),
		HHMaxDelay:                msEnv("HH_MAX_DELAY_MS", 4000),
		HHTimeout:                 msEnv("HH_TIMEOUT_MS", 15000),
		HHMaxRetries:              intEnv("HH_MAX_RETRIES", 3),
		HHCircuitFailureThreshold: intEnv("HH_CIRCUIT_FAILURE_THRESHOLD", 5),
		HHCircuitOpen:             msEnv("HH_CIRCUIT_OPEN_MS", 5*60*1000),

		HHIndexCron:         os.Getenv("HH_INDEX_CRON"),
		HHRefreshCron:       os.Getenv("HH_REFRESH_CRON"),
		HHRefreshBatchSize:  intEnv("HH_REFRESH_BATCH_SIZE", 500),
		HHBootstrapIndexNow: boolEnv("HH_BOOTSTRAP_INDEX_NOW", false),
		HHHydrateMaxBacklog: intEnv("HH_HYDRATE_MAX_BACKLOG", 5000),

		GCArchiveCron: os.Getenv("GC_ARCHIVE_CRON"),
		GCDeleteCron:  os.Getenv("GC_DELETE_CRON"),

		WorkerConcurrency: intEnv("WORKER_CONCURRENCY", 1),
	}, nil
}

func requiredEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", name)
	}
	return value, nil
}

func stringEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// intEnv returns the fallback for unset, malformed, or non-positive values,
// never an error; a bad tunable must not stop the worker.
func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func msEnv(name string, fallbackMs int) time.Duration {
	return time.Duration(intEnv(name, fallbackMs)) * time.Millisecond
}

func boolEnv(name string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
