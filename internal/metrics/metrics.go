// Package metrics renders a pull-based Prometheus exposition snapshot of
// queue depths, canonical-store counts, and per-(source, stage) health,
// and serves it over a small HTTP endpoint.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/queue"
)

// QueueInspector reports per-state queue sizes. *queue.Client satisfies it.
type QueueInspector interface {
	QueueDepths(ctx context.Context, queueName string) (queue.Depths, error)
}

// StoreInspector reports canonical-store aggregates. *db.DB satisfies it.
type StoreInspector interface {
	CountJobsByStatus(ctx context.Context) ([]db.JobStatusCount, error)
	CountJobsFirstSeenSince(ctx context.Context, since time.Time) (int64, error)
	ListSourceHealth(ctx context.Context) ([]db.SourceHealth, error)
}

// Collector gathers one snapshot per scrape; it holds no state between
// scrapes.
type Collector struct {
	queues []string
	q      QueueInspector
	store  StoreInspector
	now    func() time.Time
}

// NewCollector builds a collector over the given stage queues.
func NewCollector(q QueueInspector, store StoreInspector, queues []string) *Collector {
	return &Collector{
		queues: queues,
		q:      q,
		store:  store,
		now:    time.Now,
	}
}

// Snapshot renders the current state in Prometheus text exposition format.
func (c *Collector) Snapshot(ctx context.Context) (string, error) {
	var b strings.Builder

	b.WriteString("# HELP crawler_queue_depth Jobs per queue and state\n")
	b.WriteString("# TYPE crawler_queue_depth gauge\n")
	for _, name := range c.queues {
		depths, err := c.q.QueueDepths(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to read depth of queue %s: %w", name, err)
		}
		states := []struct {
			state string
			value int64
		}{
			{"pending", depths.Pending},
			{"delayed", depths.Delayed},
			{"processing", depths.Processing},
			{"failed", depths.Failed},
		}
		for _, s := range states {
			fmt.Fprintf(&b, "crawler_queue_depth{queue=%q,state=%q} %d\n", name, s.state, s.value)
		}
	}

	counts, err := c.store.CountJobsByStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count jobs by status: %w", err)
	}
	b.WriteString("# HELP crawler_jobs Stored jobs per source and status\n")
	b.WriteString("# TYPE crawler_jobs gauge\n")
	totals := make(map[string]int64)
	var statuses []string
	for _, count := range counts {
		fmt.Fprintf(&b, "crawler_jobs{source=%q,status=%q} %d\n", count.SourceID, count.Status, count.Count)
		if _, seen := totals[count.Status]; !seen {
			statuses = append(statuses, count.Status)
		}
		totals[count.Status] += count.Count
	}
	b.WriteString("# HELP crawler_jobs_total Stored jobs per status across all sources\n")
	b.WriteString("# TYPE crawler_jobs_total gauge\n")
	for _, status := range statuses {
		fmt.Fprintf(&b, "crawler_jobs_total{status=%q} %d\n", status, totals[status])
	}

	fresh, err := c.store.CountJobsFirstSeenSince(ctx, c.now().Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to count recent jobs: %w", err)
	}
	b.WriteString("# HELP crawler_jobs_first_seen_24h Jobs first seen in the last 24 hours\n")
	b.WriteString("# TYPE crawler_jobs_first_seen_24h gauge\n")
	fmt.Fprintf(&b, "crawler_jobs_first_seen_24h %d\n", fresh)

	health, err := c.store.ListSourceHealth(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list source health: %w", err)
	}
	b.WriteString("# HELP crawler_source_health_ok Whether the last run of a (source, stage) succeeded\n")
	b.WriteString("# TYPE crawler_source_health_ok gauge\n")
	for _, h := range health {
		ok := 0
		if h.Status == db.HealthOK {
			ok = 1
		}
		fmt.Fprintf(&b, "crawler_source_health_ok{source=%q,stage=%q} %d\n", h.SourceID, h.Stage, ok)
	}
	b.WriteString("# HELP crawler_source_health_consecutive_failures Consecutive failures per (source, stage)\n")
	b.WriteString("# TYPE crawler_source_health_consecutive_failures gauge\n")
	for _, h := range health {
		fmt.Fprintf(&b, "crawler_source_health_consecutive_failures{source=%q,stage=%q} %d\n", h.SourceID, h.Stage, h.ConsecutiveFailures)
	}
	b.WriteString("# HELP crawler_source_health_last_duration_ms Duration of the last run per (source, stage)\n")
	b.WriteString("# TYPE crawler_source_health_last_duration_ms gauge\n")
	for _, h := range health {
		fmt.Fprintf(&b, "crawler_source_health_last_duration_ms{source=%q,stage=%q} %d\n", h.SourceID, h.Stage, h.LastDurationMs)
	}

	return b.String(), nil
}
