// Package queue implements a durable at-least-once job queue on Redis.
//
// Each named queue is a small key family:
//
//	q:{name}:pending     LIST of ready job ids
//	q:{name}:delayed     ZSET job id -> ready-at unix seconds
//	q:{name}:processing  ZSET job id -> visibility deadline unix seconds
//	q:{name}:data        HASH job id -> JSON envelope
//	q:{name}:failed      LIST of job ids that exhausted their attempts
//
// Job ids are claimed with HSETNX, so enqueueing the same id twice is a
// no-op. A job whose handler dies past the visibility deadline is moved
// back to pending by the reaper, which is what makes delivery at-least-once
// rather than at-most-once.
//
// Transitions that touch more than one key run as Lua scripts or MULTI
// pipelines: an id must never be claimed in the data hash without also
// sitting in exactly one of pending, delayed, processing, or failed, or a
// partial write would strand it where no reaper looks.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Policy is the retry and visibility configuration for one queue.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	BackoffCap  time.Duration
	Visibility  time.Duration
}

// DefaultPolicy applies to queues without an explicit policy.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Backoff:     30 * time.Second,
	BackoffCap:  15 * time.Minute,
	Visibility:  10 * time.Minute,
}

// Job is one unit of work. Payload is the handler's JSON document.
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
}

// Client issues queue operations against one Redis instance.
type Client struct {
	rdb      *redis.Client
	policies map[string]Policy

	now func() time.Time
}

// NewClient builds a queue client. policies may be nil; queues missing an
// entry use DefaultPolicy.
func NewClient(rdb *redis.Client, policies map[string]Policy) *Client {
	return &Client{rdb: rdb, policies: policies, now: time.Now}
}

func (c *Client) policy(queue string) Policy {
	if p, ok := c.policies[queue]; ok {
		return p
	}
	return DefaultPolicy
}

// Claims the id and makes it runnable in one step. A non-positive ready-at
// score means immediate.
var enqueueScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
else
	redis.call("LPUSH", KEYS[2], ARGV[1])
end
return 1
`)

// Pops one ready id and records its visibility deadline in the same step,
// so a crash here leaves the job in processing for the reaper.
var dequeueScript = redis.NewScript(`
local id = redis.call("RPOP", KEYS[1])
if not id then
	return false
end
redis.call("ZADD", KEYS[2], ARGV[1], id)
return id
`)

func pendingKey(queue string) string    { return "q:" + queue + ":pending" }
func delayedKey(queue string) string    { return "q:" + queue + ":delayed" }
func processingKey(queue string) string { return "q:" + queue + ":processing" }
func dataKey(queue string) string       { return "q:" + queue + ":data" }
func failedKey(queue string) string     { return "q:" + queue + ":failed" }

// Enqueue adds a job to the queue. An empty id gets a generated UUID.
// Returns false when a job with the same id already exists, which callers
// rely on for idempotent fan-out.
func (c *Client) Enqueue(ctx context.Context, queue, id string, payload any) (bool, error) {
	return c.enqueue(ctx, queue, id, payload, 0)
}

// EnqueueDelayed adds a job that becomes ready after the delay.
func (c *Client) EnqueueDelayed(ctx context.Context, queue, id string, payload any, delay time.Duration) (bool, error) {
	return c.enqueue(ctx, queue, id, payload, delay)
}

func (c *Client) enqueue(ctx context.Context, queue, id string, payload any, delay time.Duration) (bool, error) {
	if id == "" {
		id = uuid.New().String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload for %s: %w", queue, err)
	}
	job := Job{
		ID:         id,
		Queue:      queue,
		Payload:    body,
		EnqueuedAt: c.now().UTC(),
	}
	envelope, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal job envelope for %s: %w", queue, err)
	}

	var readyAt int64
	if delay > 0 {
		readyAt = c.now().Add(delay).Unix()
	}
	claimed, err := enqueueScript.Run(ctx, c.rdb,
		[]string{dataKey(queue), pendingKey(queue), delayedKey(queue)},
		id, envelope, readyAt).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue job %s on %s: %w", id, queue, err)
	}
	return claimed == 1, nil
}

// Dequeue pops one ready job and moves it to processing under the queue's
// visibility deadline. Returns nil without error when the queue is empty.
func (c *Client) Dequeue(ctx context.Context, queue string) (*Job, error) {
	for {
		deadline := c.now().Add(c.policy(queue).Visibility).Unix()
		id, err := dequeueScript.Run(ctx, c.rdb,
			[]string{pendingKey(queue), processingKey(queue)}, deadline).Text()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pop from %s: %w", queue, err)
		}

		envelope, err := c.rdb.HGet(ctx, dataKey(queue), id).Result()
		if errors.Is(err, redis.Nil) {
			// orphaned id with no envelope, drop it
			_ = c.rdb.ZRem(ctx, processingKey(queue), id).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load job %s from %s: %w", id, queue, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(envelope), &job); err != nil {
			_ = c.rdb.ZRem(ctx, processingKey(queue), id).Err()
			_ = c.rdb.HDel(ctx, dataKey(queue), id).Err()
			return nil, fmt.Errorf("decode job %s from %s: %w", id, queue, err)
		}
		return &job, nil
	}
}

// Ack removes a completed job.
func (c *Client) Ack(ctx context.Context, job *Job) error {
	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, processingKey(job.Queue), job.ID)
	pipe.HDel(ctx, dataKey(job.Queue), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack job %s on %s: %w", job.ID, job.Queue, err)
	}
	return nil
}

// Fail records a failed attempt. The job is re-queued with exponential
// backoff until its attempts are exhausted, then parked on the failed list.
func (c *Client) Fail(ctx context.Context, job *Job, cause error) error {
	p := c.policy(job.Queue)
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}

	envelope, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal failed job %s: %w", job.ID, err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, processingKey(job.Queue), job.ID)
	pipe.HSet(ctx, dataKey(job.Queue), job.ID, envelope)
	if job.Attempts >= p.MaxAttempts {
		pipe.LPush(ctx, failedKey(job.Queue), job.ID)
	} else {
		pipe.ZAdd(ctx, delayedKey(job.Queue), redis.Z{
			Score:  float64(c.now().Add(RetryDelay(p, job.Attempts)).Unix()),
			Member: job.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail job %s on %s: %w", job.ID, job.Queue, err)
	}
	return nil
}

// RetryDelay is the backoff before attempt+1: backoff * 2^(attempts-1),
// capped.
func RetryDelay(p Policy, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.Backoff << (attempts - 1)
	if p.BackoffCap > 0 && d > p.BackoffCap {
		return p.BackoffCap
	}
	return d
}

// PromoteDue moves delayed jobs whose ready time has passed onto the
// pending list. Returns the number promoted.
func (c *Client) PromoteDue(ctx context.Context, queue string) (int, error) {
	return c.drainZSet(ctx, queue, delayedKey(queue))
}

// ReapExpired returns jobs whose visibility deadline passed to the pending
// list, so a crashed worker's jobs are re-delivered.
func (c *Client) ReapExpired(ctx context.Context, queue string) (int, error) {
	return c.drainZSet(ctx, queue, processingKey(queue))
}

func (c *Client) drainZSet(ctx context.Context, queue, key string) (int, error) {
	now := strconv.FormatInt(c.now().Unix(), 10)
	ids, err := c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("range due jobs on %s: %w", queue, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, key, id)
		pipe.LPush(ctx, pendingKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("promote due jobs on %s: %w", queue, err)
	}
	return len(ids), nil
}

// Depths are the per-state sizes of one queue.
type Depths struct {
	Pending    int64 `json:"pending"`
	Delayed    int64 `json:"delayed"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
}

// Backlog is the work not yet completed: everything but failed.
func (d Depths) Backlog() int64 {
	return d.Pending + d.Delayed + d.Processing
}

// QueueDepths reports the current size of each state for a queue.
func (c *Client) QueueDepths(ctx context.Context, queue string) (Depths, error) {
	pipe := c.rdb.Pipeline()
	pending := pipe.LLen(ctx, pendingKey(queue))
	delayed := pipe.ZCard(ctx, delayedKey(queue))
	processing := pipe.ZCard(ctx, processingKey(queue))
	failed := pipe.LLen(ctx, failedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return Depths{}, fmt.Errorf("queue depths for %s: %w", queue, err)
	}
	return Depths{
		Pending:    pending.Val(),
		Delayed:    delayed.Val(),
		Processing: processing.Val(),
		Failed:     failed.Val(),
	}, nil
}
