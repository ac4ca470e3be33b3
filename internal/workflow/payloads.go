package workflow

import (
	"encoding/json"
	"fmt"

	"keyart/internal/assets"
	"keyart/internal/queue"
	"keyart/internal/services"
)

// RefreshPayload asks for a provider fetch of one entity's candidates.
type RefreshPayload struct {
	EntityType string   `json:"entity_type"`
	EntityID   int64    `json:"entity_id"`
	AssetTypes []string `json:"asset_types,omitempty"`
	// Select runs auto-selection right after the fetch, the common case for
	// sweep-triggered refreshes.
	Select bool `json:"select,omitempty"`
}

// SelectPayload asks for auto-selection over already-stored candidates.
type SelectPayload struct {
	EntityType string   `json:"entity_type"`
	EntityID   int64    `json:"entity_id"`
	AssetTypes []string `json:"asset_types,omitempty"`
}

// SweepPayload drives a full-catalog refresh sweep.
type SweepPayload struct {
	// ChunkSize bounds how many entities are loaded per page; chunking keeps
	// the job cancellable between pages.
	ChunkSize int `json:"chunk_size,omitempty"`
	// SinceHours bounds the provider change-feed lookback. Zero means 24h.
	SinceHours int `json:"since_hours,omitempty"`
}

// GCPayload drives garbage collection. Empty today; versioned for later.
type GCPayload struct{}

func decodePayload(job *queue.Job, target any) error {
	raw := job.Payload
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return services.Wrap(services.ErrValidation, "workflow", "decode_payload",
			fmt.Sprintf("job %d (%s)", job.ID, job.Type), err)
	}
	return nil
}

func parseEntityKey(entityType string, entityID int64) (assets.EntityKey, error) {
	if entityID <= 0 {
		return assets.EntityKey{}, services.Wrap(services.ErrValidation, "workflow", "parse_entity",
			fmt.Sprintf("invalid entity id %d", entityID), nil)
	}
	switch assets.EntityType(entityType) {
	case assets.EntityMovie, assets.EntitySeries, assets.EntitySeason, assets.EntityEpisode:
		return assets.EntityKey{Type: assets.EntityType(entityType), ID: entityID}, nil
	default:
		return assets.EntityKey{}, services.Wrap(services.ErrValidation, "workflow", "parse_entity",
			fmt.Sprintf("unknown entity type %q", entityType), nil)
	}
}

func parseAssetTypes(names []string) ([]assets.AssetType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]assets.AssetType, 0, len(names))
	for _, name := range names {
		assetType, ok := assets.ParseAssetType(name)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "workflow", "parse_asset_types",
				fmt.Sprintf("unknown asset type %q", name), nil)
		}
		types = append(types, assetType)
	}
	return types, nil
}
