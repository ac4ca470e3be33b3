package providers

import (
	"context"
	"time"

	"keyart/internal/assets"
)

// RawCandidate is one artwork offer as a provider reports it, before it is
// attached to a catalog entity. Zero Width/Height and a nil VoteCount mean
// the provider did not report the field.
type RawCandidate struct {
	URL        string
	Width      int
	Height     int
	Language   string
	QualityTag string
	Hints      []string
	FileSize   int64
	PHash      string
	VoteAvg    float64
	VoteCount  *int
}

// Client is one artwork provider. FetchCandidates returns every offer the
// provider has for the entity and asset type; an entity the provider cannot
// address (missing external id) yields an empty result, not an error.
type Client interface {
	Name() string
	FetchCandidates(ctx context.Context, entity assets.Entity, assetType assets.AssetType) ([]RawCandidate, error)
}

// ChangeFeed is implemented by providers that expose a bulk "changes since"
// query. ChangesSince returns the provider-side identifiers of entities
// modified after the given time; sweeps use it with the refresh ledger to
// skip unmodified entities.
type ChangeFeed interface {
	ChangesSince(ctx context.Context, since time.Time) ([]string, error)
}

// Convert attaches raw offers to a catalog entity as candidates.
func Convert(entity assets.EntityKey, assetType assets.AssetType, provider string, raws []RawCandidate) []assets.Candidate {
	candidates := make([]assets.Candidate, 0, len(raws))
	for _, raw := range raws {
		candidates = append(candidates, assets.Candidate{
			Entity:     entity,
			Asset:      assetType,
			Provider:   provider,
			URL:        raw.URL,
			Width:      raw.Width,
			Height:     raw.Height,
			Language:   raw.Language,
			QualityTag: raw.QualityTag,
			Hints:      raw.Hints,
			FileSize:   raw.FileSize,
			PHash:      raw.PHash,
			VoteAvg:    raw.VoteAvg,
			VoteCount:  raw.VoteCount,
		})
	}
	return candidates
}
