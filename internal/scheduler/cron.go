package scheduler

import (
	"context"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// Cron wraps robfig/cron so scheduled tasks receive the process context.
// It satisfies sources.CronRegistrar.
type Cron struct {
	cron   *cron.Cron
	logger log.Logger

	ctx context.Context
}

// NewCron builds a stopped cron runner. Entries registered before Start
// fire once the runner starts.
func NewCron(logger log.Logger) *Cron {
	return &Cron{
		cron:   cron.New(),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Schedule registers a named recurring task. The spec is validated here so
// bad schedules surface at registration, not at first tick.
func (c *Cron) Schedule(spec, name string, run func(context.Context)) error {
	_, err := c.cron.AddFunc(spec, func() {
		c.logger.Debug().Str("task", name).Msg("cron task firing")
		run(c.ctx)
	})
	return err
}

// Start begins firing entries. The context is handed to every task; cancel
// it to make in-flight tasks wind down.
func (c *Cron) Start(ctx context.Context) {
	c.ctx = ctx
	c.cron.Start()
}

// Stop halts scheduling and waits for running tasks to return.
func (c *Cron) Stop() {
	stopCtx := c.cron.Stop()
	<-stopCtx.Done()
}
