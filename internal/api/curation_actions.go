package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keyart/internal/assets"
	"keyart/internal/logging"
	"keyart/internal/services"
)

// Candidates lists every stored candidate for one entity.
func (s *Service) Candidates(ctx context.Context, entityType string, entityID int64) ([]CandidateView, error) {
	key, err := parseEntity(entityType, entityID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.catalog.ListForEntity(ctx, key)
	if err != nil {
		return nil, err
	}
	return FromCandidates(candidates), nil
}

// SelectCandidate applies a manual selection. With lock set, auto-selection
// leaves the slot alone from then on.
func (s *Service) SelectCandidate(ctx context.Context, candidateID int64, lock bool) error {
	candidate, err := s.catalog.GetCandidate(ctx, candidateID)
	if err != nil {
		return err
	}
	if candidate == nil {
		return services.Wrap(services.ErrValidation, "api", "select_candidate",
			fmt.Sprintf("candidate %d not found", candidateID), nil)
	}

	key := candidate.Key()
	current, err := s.catalog.CurrentSelection(ctx, key)
	if err != nil {
		return err
	}
	if err := s.catalog.SwapSelection(ctx, key, candidateID, assets.SelectedByManual); err != nil {
		return err
	}
	if lock {
		if err := s.catalog.SetLock(ctx, key, true); err != nil {
			return err
		}
	}

	decision := assets.SelectionDecision{
		ID:        uuid.NewString(),
		Key:       key,
		NewURL:    candidate.URL,
		Provider:  candidate.Provider,
		Reason:    "manual selection",
		Applied:   true,
		DecidedAt: time.Now().UTC(),
	}
	if current != nil {
		decision.PreviousURL = current.URL
	}
	if err := s.catalog.RecordDecision(ctx, decision); err != nil {
		return err
	}

	s.logger.Info("manual selection applied",
		logging.Int64(logging.FieldEntity, key.Entity.ID),
		logging.String(logging.FieldAssetType, string(key.Asset)),
		logging.Bool("locked", lock))
	return nil
}

// BlockCandidate marks a candidate ineligible; a selected candidate loses
// its selection so the next pass promotes a replacement.
func (s *Service) BlockCandidate(ctx context.Context, candidateID int64) error {
	if err := s.catalog.Block(ctx, candidateID); err != nil {
		return err
	}
	s.logger.Info("candidate blocked", logging.Int64("candidate_id", candidateID))
	return nil
}

// UnblockCandidate makes a blocked candidate eligible again.
func (s *Service) UnblockCandidate(ctx context.Context, candidateID int64) error {
	return s.catalog.Unblock(ctx, candidateID)
}

// SetLock pins or unpins one asset slot against auto-selection.
func (s *Service) SetLock(ctx context.Context, entityType string, entityID int64, assetType string, locked bool) error {
	key, err := parseEntity(entityType, entityID)
	if err != nil {
		return err
	}
	asset, err := parseAsset(assetType)
	if err != nil {
		return err
	}
	return s.catalog.SetLock(ctx, assets.AssetKey{Entity: key, Asset: asset}, locked)
}

// Decisions returns the most recent selection decisions for one entity.
func (s *Service) Decisions(ctx context.Context, entityType string, entityID int64, limit int) ([]DecisionView, error) {
	key, err := parseEntity(entityType, entityID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	decisions, err := s.catalog.RecentDecisions(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	return FromDecisions(decisions), nil
}

// Snapshot fills the store-derived parts of a status snapshot; the daemon
// adds its own runtime fields.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	summary, err := s.queue.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	entities, err := s.catalog.CountEntities(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{
		QueueStats: QueueStatsMap(summary),
		Entities:   entities,
	}
	if s.breakers != nil {
		states := s.breakers.States()
		snapshot.Breakers = make(map[string]string, len(states))
		for name, state := range states {
			snapshot.Breakers[name] = string(state)
		}
	}
	return snapshot, nil
}
