package selector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"keyart/internal/assets"
	"keyart/internal/catalog"
	"keyart/internal/logging"
	"keyart/internal/scoring"
	"keyart/internal/services"
)

// Options tunes selection behavior.
type Options struct {
	PreferredLanguage string
	ProviderOrder     []string
}

// AutoSelector decides and applies the best candidate per asset type.
type AutoSelector struct {
	store  *catalog.Store
	opts   Options
	logger *slog.Logger
}

// New builds a selector over a catalog store.
func New(store *catalog.Store, opts Options, logger *slog.Logger) *AutoSelector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AutoSelector{store: store, opts: opts, logger: logger}
}

// SelectBest runs selection for one entity across the requested asset types
// (all known types when none are given) and returns one decision per
// considered type. Locked types are skipped entirely: never scored, never
// written, and no decision is recorded for them. A current selection,
// manual or automatic, only changes when an unlocked type's top-ranked
// candidate differs from it; the swap is atomic, and the new row carries
// selected_by='auto'.
func (s *AutoSelector) SelectBest(ctx context.Context, entity assets.EntityKey, assetTypes []assets.AssetType) ([]assets.SelectionDecision, error) {
	if len(assetTypes) == 0 {
		assetTypes = assets.AllAssetTypes()
	}

	var decisions []assets.SelectionDecision
	for _, assetType := range assetTypes {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		key := assets.AssetKey{Entity: entity, Asset: assetType}

		locked, err := s.store.IsLocked(ctx, key)
		if err != nil {
			return decisions, services.Wrap(services.ErrInfrastructure, "selector", "select_best", "read lock", err)
		}
		if locked {
			s.logger.Debug("asset type locked, skipping",
				logging.String(logging.FieldAssetType, string(assetType)),
				logging.Int64(logging.FieldEntity, entity.ID))
			continue
		}

		decision, err := s.selectOne(ctx, key)
		if err != nil {
			return decisions, err
		}
		if decision != nil {
			decisions = append(decisions, *decision)
		}
	}
	return decisions, nil
}

func (s *AutoSelector) selectOne(ctx context.Context, key assets.AssetKey) (*assets.SelectionDecision, error) {
	stored, err := s.store.ListCandidates(ctx, key)
	if err != nil {
		return nil, services.Wrap(services.ErrInfrastructure, "selector", "select_one", "list candidates", err)
	}

	current, err := s.store.CurrentSelection(ctx, key)
	if err != nil {
		return nil, services.Wrap(services.ErrInfrastructure, "selector", "select_one", "read selection", err)
	}

	pool := make([]assets.Candidate, 0, len(stored))
	for _, candidate := range stored {
		if candidate.Blocked {
			continue
		}
		// Drop other listings of the asset already in place, keeping the
		// selected row itself so a stable ranking stays a no-op instead of
		// re-recommending the current image under another URL.
		if current != nil && candidate.ID != current.ID && scoring.SameAsset(candidate, *current) {
			continue
		}
		pool = append(pool, candidate)
	}
	pool = scoring.Deduplicate(pool, nil)

	if len(pool) == 0 {
		return nil, nil
	}

	ranked := scoring.Rank(pool, s.opts.PreferredLanguage, s.opts.ProviderOrder)
	best := ranked[0]

	decision := assets.SelectionDecision{
		ID:        uuid.NewString(),
		Key:       key,
		NewURL:    best.URL,
		Provider:  best.Provider,
		Score:     best.Score,
		DecidedAt: time.Now().UTC(),
	}
	if current != nil {
		decision.PreviousURL = current.URL
	}

	if current != nil && current.ID == best.ID {
		decision.NewURL = current.URL
		decision.Reason = "current selection still ranks first"
	} else {
		if err := s.store.SwapSelection(ctx, key, best.ID, assets.SelectedByAuto); err != nil {
			return nil, services.Wrap(services.ErrInfrastructure, "selector", "select_one", "swap selection", err)
		}
		decision.Applied = true
		decision.Reason = fmt.Sprintf("tier %d, score %.2f from %s", best.Tier, best.Score, best.Provider)
		s.logger.Info("selection applied",
			logging.String(logging.FieldAssetType, string(key.Asset)),
			logging.Int64(logging.FieldEntity, key.Entity.ID),
			logging.String(logging.FieldProvider, best.Provider),
			logging.Float64("score", best.Score))
	}

	if err := s.store.RecordDecision(ctx, decision); err != nil {
		return nil, services.Wrap(services.ErrInfrastructure, "selector", "select_one", "record decision", err)
	}
	return &decision, nil
}
