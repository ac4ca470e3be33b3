package workflow

import (
	"context"
	"fmt"

	"keyart/internal/queue"
	"keyart/internal/services"
)

// SelectHandler runs auto-selection over the candidates already stored for
// one entity. Selection jobs carry the asset key as dedupe key so at most
// one is in flight per (entity, asset type).
type SelectHandler struct{}

func (SelectHandler) Type() queue.Type { return queue.TypeSelect }

func (SelectHandler) Execute(ctx context.Context, env *Env, job *queue.Job) error {
	var payload SelectPayload
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

	entity, err := env.Catalog.GetEntity(ctx, entityKey)
	if err != nil {
		return services.Wrap(services.ErrInfrastructure, "select", "load_entity", "", err)
	}
	if entity == nil {
		return services.Wrap(services.ErrValidation, "select", "load_entity",
			fmt.Sprintf("entity %s/%d not in catalog", entityKey.Type, entityKey.ID), nil)
	}

	return runSelection(ctx, env, *entity, assetTypes)
}
