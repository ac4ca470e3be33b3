package workflow

import (
	"context"
	"fmt"
	"time"

	"keyart/internal/assets"
	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/services"
)

// SweepHandler walks the whole catalog in chunks and enqueues refresh jobs
// for entities that need one. Providers with a change feed bound the work:
// entities they report unchanged since the last check are skipped.
type SweepHandler struct{}

func (SweepHandler) Type() queue.Type { return queue.TypeSweep }

func (SweepHandler) Execute(ctx context.Context, env *Env, job *queue.Job) error {
	var payload SweepPayload
	if err := decodePayload(job, &payload); err != nil {
		return err
	}
	chunkSize := payload.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}
	lookback := time.Duration(payload.SinceHours) * time.Hour
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	since := time.Now().UTC().Add(-lookback)

	logger := env.logger().With(logging.String(logging.FieldComponent, "sweep"))
	started := time.Now()

	// One bulk changes query per feed-capable provider covers the whole
	// sweep.
	changedByProvider := make(map[string]map[string]bool)
	for _, client := range env.Providers.Clients() {
		feed, ok := env.Providers.ChangeFeedFor(client.Name())
		if !ok {
			continue
		}
		var ids []string
		err := env.fetchThrough(ctx, client.Name(), job.Priority.Urgent(), func() error {
			var feedErr error
			ids, feedErr = feed.ChangesSince(ctx, since)
			return feedErr
		})
		if err != nil {
			// A dead change feed degrades to fetching everything, it does
			// not fail the sweep.
			logger.Warn("change feed unavailable, sweeping without it",
				logging.String(logging.FieldProvider, client.Name()),
				logging.Error(err))
			continue
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		changedByProvider[client.Name()] = set
	}

	total, err := env.Catalog.CountEntities(ctx)
	if err != nil {
		return services.Wrap(services.ErrInfrastructure, "sweep", "count_entities", "", err)
	}

	var (
		cursor   *assets.EntityKey
		scanned  int
		enqueued int
	)
	for {
		// Checkpoint between chunks: a cancelled sweep stops cleanly with
		// everything enqueued so far intact.
		if cancelled, err := env.Queue.CancelRequested(ctx, job.ID); err == nil && cancelled {
			return queue.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		entities, err := env.Catalog.ListEntities(ctx, cursor, chunkSize)
		if err != nil {
			return services.Wrap(services.ErrInfrastructure, "sweep", "list_entities", "", err)
		}
		if len(entities) == 0 {
			break
		}

		for _, entity := range entities {
			scanned++
			needs, err := entityNeedsRefresh(ctx, env, entity, changedByProvider, since)
			if err != nil {
				return err
			}
			if !needs {
				continue
			}
			if _, err := env.Queue.Enqueue(ctx, queue.NewJob{
				Type:     queue.TypeRefresh,
				Priority: queue.PriorityBulkScan,
				Payload: RefreshPayload{
					EntityType: string(entity.Key.Type),
					EntityID:   entity.Key.ID,
					Select:     true,
				},
				MaxRetries:  job.MaxRetries,
				Cancellable: true,
				DedupeKey:   fmt.Sprintf("refresh:%s:%d", entity.Key.Type, entity.Key.ID),
			}); err != nil {
				return services.Wrap(services.ErrInfrastructure, "sweep", "enqueue_refresh", "", err)
			}
			enqueued++
		}

		last := entities[len(entities)-1].Key
		cursor = &last
		if total > 0 {
			_ = env.Queue.UpdateProgress(ctx, job.ID, "Sweeping",
				fmt.Sprintf("%d/%d entities", scanned, total),
				float64(scanned)/float64(total)*100)
		}
	}

	logger.Info("sweep finished",
		logging.Int("scanned", scanned),
		logging.Int("enqueued", enqueued),
		logging.Duration("elapsed", time.Since(started)))
	if env.Notifier != nil {
		if err := env.Notifier.NotifySweepCompleted(ctx, scanned, enqueued, time.Since(started)); err != nil {
			logger.Debug("sweep notification not delivered", logging.Error(err))
		}
	}
	return nil
}

// entityNeedsRefresh decides whether any provider could have new artwork
// for the entity. Never-checked providers always need a fetch; feed-capable
// providers are skipped when the feed did not report the entity and the
// ledger already shows a check.
func entityNeedsRefresh(ctx context.Context, env *Env, entity assets.Entity, changedByProvider map[string]map[string]bool, since time.Time) (bool, error) {
	for _, client := range env.Providers.Clients() {
		name := client.Name()
		entry, err := env.Catalog.LedgerEntryFor(ctx, name, entity.Key)
		if err != nil {
			return false, services.Wrap(services.ErrInfrastructure, "sweep", "read_ledger", "", err)
		}
		if entry == nil || entry.LastChecked.Before(since) {
			return true, nil
		}

		changed, hasFeed := changedByProvider[name]
		if !hasFeed {
			// No usable change feed: the ledger alone cannot prove the
			// provider is unchanged.
			return true, nil
		}
		externalID, ok := entity.ExternalID(name)
		if !ok {
			// The feed cannot vouch for an entity it has no id for.
			return true, nil
		}
		if changed[externalID] {
			return true, nil
		}
		// Feed says unchanged: record the check without a fetch.
		if err := env.Catalog.TouchLedger(ctx, name, entity.Key, false); err != nil {
			return false, services.Wrap(services.ErrInfrastructure, "sweep", "touch_ledger", "", err)
		}
	}
	return false, nil
}
