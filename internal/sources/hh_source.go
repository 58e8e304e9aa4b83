package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/opencruit/crawler/internal/queue"
)

const (
	defaultIndexCron        = "15 */12 * * *"
	defaultRefreshCron      = "0 */12 * * *"
	defaultRefreshBatchSize = 500
)

// SetupHHScheduler registers the hh workflow's recurring jobs: one index
// enqueue per IT professional role, a refresh enqueue, and optional one-shot
// bootstrap index jobs keyed by date so repeated scheduler passes on the
// same day stay idempotent.
func SetupHHScheduler(ctx context.Context, wc WorkflowContext) (WorkflowResult, error) {
	opts := wc.Options
	if opts.IndexCron == "" {
		opts.IndexCron = defaultIndexCron
	}
	if opts.RefreshCron == "" {
		opts.RefreshCron = defaultRefreshCron
	}
	if opts.RefreshBatchSize <= 0 {
		opts.RefreshBatchSize = defaultRefreshBatchSize
	}
	now := wc.Now
	if now == nil {
		now = time.Now
	}

	roleIDs, err := wc.Roles.ITRoleIDs(ctx)
	if err != nil {
		return WorkflowResult{}, fmt.Errorf("list hh professional roles: %w", err)
	}
	if len(roleIDs) == 0 {
		return WorkflowResult{}, fmt.Errorf("hh api returned no IT professional roles")
	}

	for _, roleID := range roleIDs {
		name := "hh-index-role-" + roleID
		payload := queue.IndexPayload{ProfessionalRole: roleID}
		err := wc.Registrar.Schedule(opts.IndexCron, name, func(ctx context.Context) {
			if _, err := wc.Queue.Enqueue(ctx, queue.IndexQueue, name, payload); err != nil {
				wc.Logger.Warn().Err(err).Str("role", roleID).Msg("could not enqueue index job")
			}
		})
		if err != nil {
			return WorkflowResult{}, fmt.Errorf("register index cron for role %s: %w", roleID, err)
		}
	}

	if opts.BootstrapIndexNow {
		key := now().UTC().Format("20060102")
		for _, roleID := range roleIDs {
			id := fmt.Sprintf("hh-index-bootstrap-%s-%s", roleID, key)
			if _, err := wc.Queue.Enqueue(ctx, queue.IndexQueue, id,
				queue.IndexPayload{ProfessionalRole: roleID}); err != nil {
				return WorkflowResult{}, fmt.Errorf("enqueue bootstrap index for role %s: %w", roleID, err)
			}
		}
	}

	refreshPayload := queue.RefreshPayload{BatchSize: opts.RefreshBatchSize}
	err = wc.Registrar.Schedule(opts.RefreshCron, "hh-refresh", func(ctx context.Context) {
		if _, err := wc.Queue.Enqueue(ctx, queue.RefreshQueue, "hh-refresh", refreshPayload); err != nil {
			wc.Logger.Warn().Err(err).Msg("could not enqueue refresh job")
		}
	})
	if err != nil {
		return WorkflowResult{}, fmt.Errorf("register refresh cron: %w", err)
	}

	return WorkflowResult{Stats: map[string]any{"roleCount": len(roleIDs)}}, nil
}
