package workflow

import (
	"context"
	"errors"
	"fmt"

	"keyart/internal/assets"
	"keyart/internal/logging"
	"keyart/internal/providers"
	"keyart/internal/queue"
	"keyart/internal/scoring"
	"keyart/internal/services"
)

// RefreshHandler fetches an entity's candidates from every configured
// provider, stores them, updates the refresh ledger, and optionally runs
// auto-selection over the result.
type RefreshHandler struct{}

func (RefreshHandler) Type() queue.Type { return queue.TypeRefresh }

func (RefreshHandler) Execute(ctx context.Context, env *Env, job *queue.Job) error {
	var payload RefreshPayload
	if err := decodePayload(job, &payload); err != nil {
		return err
	}
	entityKey, err := parseEntityKey(payload.EntityType, payload.EntityID)
	if err != nil {
		return err
	}
	assetTypes, err := parseAssetTypes(payload.AssetTypes)
	if err != nil {
		return err
	}
	if len(assetTypes) == 0 {
		assetTypes = assets.AllAssetTypes()
	}

	entity, err := env.Catalog.GetEntity(ctx, entityKey)
	if err != nil {
		return services.Wrap(services.ErrInfrastructure, "refresh", "load_entity", "", err)
	}
	if entity == nil {
		return services.Wrap(services.ErrValidation, "refresh", "load_entity",
			fmt.Sprintf("entity %s/%d not in catalog", entityKey.Type, entityKey.ID), nil)
	}

	logger := env.logger().With(
		logging.String(logging.FieldComponent, "refresh"),
		logging.Int64(logging.FieldEntity, entityKey.ID))
	urgent := job.Priority.Urgent()

	totalStages := len(env.Providers.Clients()) + 1
	stage := 0
	for _, client := range env.Providers.Clients() {
		// Checkpoint between providers so long refreshes stay cancellable.
		if cancelled, err := env.Queue.CancelRequested(ctx, job.ID); err == nil && cancelled {
			return queue.ErrCancelled
		}
		stage++
		_ = env.Queue.UpdateProgress(ctx, job.ID, "Fetching",
			client.Name(), float64(stage)/float64(totalStages)*100)

		changed, err := fetchProvider(ctx, env, *entity, assetTypes, client, urgent)
		if err != nil {
			if errors.Is(err, services.ErrPermanentProvider) {
				// The provider authoritatively has nothing for this entity;
				// record the check and move on rather than failing the job.
				logger.Debug("provider has no record",
					logging.String(logging.FieldProvider, client.Name()),
					logging.Error(err))
				if lerr := env.Catalog.TouchLedger(ctx, client.Name(), entityKey, false); lerr != nil {
					return services.Wrap(services.ErrInfrastructure, "refresh", "touch_ledger", "", lerr)
				}
				continue
			}
			return err
		}
		if err := env.Catalog.TouchLedger(ctx, client.Name(), entityKey, changed); err != nil {
			return services.Wrap(services.ErrInfrastructure, "refresh", "touch_ledger", "", err)
		}
	}

	if payload.Select {
		_ = env.Queue.UpdateProgress(ctx, job.ID, "Selecting", "", 90)
		if err := runSelection(ctx, env, *entity, assetTypes); err != nil {
			return err
		}
	}
	return nil
}

// fetchProvider pulls one provider's offers across the requested asset
// types through the rate limiter and circuit breaker. Reports whether the
// fetch introduced any candidate the store had not seen.
func fetchProvider(ctx context.Context, env *Env, entity assets.Entity, assetTypes []assets.AssetType, client providers.Client, urgent bool) (bool, error) {
	changed := false
	for _, assetType := range assetTypes {
		var raws []providers.RawCandidate
		err := env.fetchThrough(ctx, client.Name(), urgent, func() error {
			var fetchErr error
			raws, fetchErr = client.FetchCandidates(ctx, entity, assetType)
			return fetchErr
		})
		if err != nil {
			return changed, err
		}
		if len(raws) == 0 {
			continue
		}

		incoming := providers.Convert(entity.Key, assetType, client.Name(), raws)
		key := assets.AssetKey{Entity: entity.Key, Asset: assetType}
		existing, err := env.Catalog.ListCandidates(ctx, key)
		if err != nil {
			return changed, services.Wrap(services.ErrInfrastructure, "refresh", "list_existing", "", err)
		}
		// Collapse same-asset duplicates within the fetch before storing.
		incoming = scoring.Deduplicate(incoming, nil)

		if hasNewURLs(incoming, existing) {
			changed = true
		}
		if err := env.Catalog.UpsertCandidates(ctx, incoming); err != nil {
			return changed, services.Wrap(services.ErrInfrastructure, "refresh", "store_candidates", "", err)
		}
	}
	return changed, nil
}

func hasNewURLs(incoming, existing []assets.Candidate) bool {
	known := make(map[string]bool, len(existing))
	for _, candidate := range existing {
		known[candidate.URL] = true
	}
	for _, candidate := range incoming {
		if !known[candidate.URL] {
			return true
		}
	}
	return false
}

// runSelection applies auto-selection and caches the winning images.
func runSelection(ctx context.Context, env *Env, entity assets.Entity, assetTypes []assets.AssetType) error {
	decisions, err := env.Selector.SelectBest(ctx, entity.Key, assetTypes)
	if err != nil {
		return err
	}
	for _, decision := range decisions {
		if !decision.Applied {
			continue
		}
		if env.Notifier != nil {
			if nerr := env.Notifier.NotifySelectionApplied(ctx, entity.Title,
				string(decision.Key.Asset), decision.Provider); nerr != nil {
				env.logger().Debug("selection notification not delivered", logging.Error(nerr))
			}
		}
		if err := cacheSelectedImage(ctx, env, decision.Key); err != nil {
			// Cache misses are not worth failing the selection over; the
			// image is re-fetched on the next pass.
			env.logger().Warn("selected image not cached",
				logging.Error(err),
				logging.String(logging.FieldAssetType, string(decision.Key.Asset)))
		}
	}
	return nil
}

func cacheSelectedImage(ctx context.Context, env *Env, key assets.AssetKey) error {
	if env.Images == nil {
		return nil
	}
	current, err := env.Catalog.CurrentSelection(ctx, key)
	if err != nil || current == nil {
		return err
	}
	if current.CacheDigest != "" {
		if _, ok := env.Images.Path(current.CacheDigest); ok {
			return nil
		}
	}
	digest, err := env.Images.Fetch(ctx, current.URL)
	if err != nil {
		return err
	}
	return env.Catalog.SetCacheDigest(ctx, current.ID, digest)
}
