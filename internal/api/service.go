package api

import (
	"fmt"
	"log/slog"

	"keyart/internal/assets"
	"keyart/internal/breaker"
	"keyart/internal/catalog"
	"keyart/internal/logging"
	"keyart/internal/notifications"
	"keyart/internal/queue"
	"keyart/internal/selector"
	"keyart/internal/services"
)

// Service bundles the stores and components API operations act on.
type Service struct {
	queue    *queue.Store
	catalog  *catalog.Store
	selector *selector.AutoSelector
	breakers *breaker.Registry
	notifier notifications.Service
	logger   *slog.Logger
}

// Deps lists what NewService needs. Breakers and notifier are optional.
type Deps struct {
	Queue    *queue.Store
	Catalog  *catalog.Store
	Selector *selector.AutoSelector
	Breakers *breaker.Registry
	Notifier notifications.Service
	Logger   *slog.Logger
}

// NewService wires an API service from its dependencies.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Service{
		queue:    deps.Queue,
		catalog:  deps.Catalog,
		selector: deps.Selector,
		breakers: deps.Breakers,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "api")),
	}
}

func parseEntity(entityType string, entityID int64) (assets.EntityKey, error) {
	if entityID <= 0 {
		return assets.EntityKey{}, services.Wrap(services.ErrValidation, "api", "parse_entity",
			fmt.Sprintf("invalid entity id %d", entityID), nil)
	}
	switch assets.EntityType(entityType) {
	case assets.EntityMovie, assets.EntitySeries, assets.EntitySeason, assets.EntityEpisode:
		return assets.EntityKey{Type: assets.EntityType(entityType), ID: entityID}, nil
	default:
		return assets.EntityKey{}, services.Wrap(services.ErrValidation, "api", "parse_entity",
			fmt.Sprintf("unknown entity type %q", entityType), nil)
	}
}

func parseAsset(name string) (assets.AssetType, error) {
	assetType, ok := assets.ParseAssetType(name)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "api", "parse_asset",
			fmt.Sprintf("unknown asset type %q", name), nil)
	}
	return assetType, nil
}
