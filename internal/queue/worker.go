package queue

import (
	"context"
	"errors"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

// Handler processes one job. A returned error schedules a retry per the
// queue's policy; panics are not recovered.
type Handler func(ctx context.Context, job *Job) error

const (
	defaultPollInterval  = time.Second
	defaultReapInterval  = 30 * time.Second
	defaultConcurrency   = 1
	shutdownDrainTimeout = 30 * time.Second
)

// Worker consumes one queue with a fixed number of in-flight jobs.
type Worker struct {
	client       *Client
	queue        string
	handler      Handler
	concurrency  int
	pollInterval time.Duration
	logger       log.Logger
}

// WorkerOptions configure a Worker. Zero values fall back to defaults;
// concurrency defaults to 1, which is the deliberate throttle for stages
// that talk to rate-limited upstreams.
type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
	Logger       log.Logger
}

// NewWorker builds a worker for one queue.
func NewWorker(client *Client, queue string, handler Handler, opts WorkerOptions) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Worker{
		client:       client,
		queue:        queue,
		handler:      handler,
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
}

// Run consumes the queue until ctx is cancelled. In-flight handlers finish
// before Run returns; jobs left on pending are picked up on restart.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	g.Go(func() error {
		return w.maintain(ctx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.client.Dequeue(ctx, w.queue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Str("queue", w.queue).Msg("dequeue failed")
			if err := sleepFor(ctx, w.pollInterval); err != nil {
				return err
			}
			continue
		}
		if job == nil {
			if err := sleepFor(ctx, w.pollInterval); err != nil {
				return err
			}
			continue
		}

		w.process(ctx, job)
	}
}

// process runs the handler with a background-derived context so an in-flight
// job finishes (or fails normally) during shutdown instead of being torn down.
func (w *Worker) process(ctx context.Context, job *Job) {
	handlerCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(context.Background(), shutdownDrainTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := w.handler(handlerCtx, job); err != nil {
		w.logger.Warn().Err(err).
			Str("queue", w.queue).
			Str("job_id", job.ID).
			Int("attempts", job.Attempts+1).
			Dur("duration", time.Since(start)).
			Msg("job failed")
		if failErr := w.client.Fail(context.WithoutCancel(ctx), job, err); failErr != nil {
			w.logger.Error().Err(failErr).Str("job_id", job.ID).Msg("could not record job failure")
		}
		return
	}

	w.logger.Debug().
		Str("queue", w.queue).
		Str("job_id", job.ID).
		Dur("duration", time.Since(start)).
		Msg("job done")
	if err := w.client.Ack(context.WithoutCancel(ctx), job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("could not ack job")
	}
}

// maintain periodically promotes due delayed jobs and reclaims jobs whose
// visibility deadline expired.
func (w *Worker) maintain(ctx context.Context) error {
	ticker := time.NewTicker(defaultReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := w.client.PromoteDue(ctx, w.queue); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Str("queue", w.queue).Msg("promote delayed failed")
		}
		if n, err := w.client.ReapExpired(ctx, w.queue); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Str("queue", w.queue).Msg("reap expired failed")
		} else if n > 0 {
			w.logger.Info().Int("requeued", n).Str("queue", w.queue).Msg("requeued expired jobs")
		}
	}
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
