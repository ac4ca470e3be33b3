package workflow

import (
	"context"
	"time"

	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/services"
)

// GCHandler prunes candidates no fetch has confirmed within the retention
// window, then drops cached images nothing references anymore.
type GCHandler struct{}

func (GCHandler) Type() queue.Type { return queue.TypeGC }

func (GCHandler) Execute(ctx context.Context, env *Env, job *queue.Job) error {
	var payload GCPayload
	if err := decodePayload(job, &payload); err != nil {
		return err
	}

	retentionDays := env.Config.Retention.CandidateRetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	logger := env.logger().With(logging.String(logging.FieldComponent, "gc"))

	_ = env.Queue.UpdateProgress(ctx, job.ID, "Pruning candidates", "", 10)
	pruned, err := env.Catalog.PruneStale(ctx, cutoff)
	if err != nil {
		return services.Wrap(services.ErrInfrastructure, "gc", "prune_candidates", "", err)
	}

	var removed int
	if env.Images != nil {
		_ = env.Queue.UpdateProgress(ctx, job.ID, "Pruning image cache", "", 60)
		keep, err := env.Catalog.ListCacheDigests(ctx)
		if err != nil {
			return services.Wrap(services.ErrInfrastructure, "gc", "list_digests", "", err)
		}
		removed, err = env.Images.Prune(keep)
		if err != nil {
			return services.Wrap(services.ErrInfrastructure, "gc", "prune_images", "", err)
		}
	}

	_ = env.Queue.UpdateProgress(ctx, job.ID, "Clearing finished jobs", "", 90)
	cleared, err := env.Queue.ClearCompleted(ctx)
	if err != nil {
		return services.Wrap(services.ErrInfrastructure, "gc", "clear_completed", "", err)
	}

	logger.Info("garbage collection finished",
		logging.Int64("candidates_pruned", pruned),
		logging.Int("images_removed", removed),
		logging.Int64("jobs_cleared", cleared))
	return nil
}
