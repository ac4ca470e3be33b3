package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keyart/internal/assets"
)

// ErrCandidateBlocked is returned when a selection targets a blocked row.
var ErrCandidateBlocked = errors.New("candidate is blocked")

// CurrentSelection returns the selected candidate for an asset key, or nil
// when nothing is selected.
func (s *Store) CurrentSelection(ctx context.Context, key assets.AssetKey) (*assets.Candidate, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+candidateColumns+` FROM candidates
         WHERE entity_type = ? AND entity_id = ? AND asset_type = ? AND is_selected = 1
         LIMIT 1`,
		key.Entity.Type, key.Entity.ID, key.Asset,
	)
	candidate, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current selection: %w", err)
	}
	return candidate, nil
}

// SwapSelection deselects whatever is currently selected for the key and
// selects the given candidate, in one transaction. Blocked candidates are
// refused. selectedBy records provenance ('auto' or 'manual').
func (s *Store) SwapSelection(ctx context.Context, key assets.AssetKey, candidateID int64, selectedBy string) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin swap tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var blocked int
		err = tx.QueryRowContext(
			ctx,
			`SELECT is_blocked FROM candidates
             WHERE id = ? AND entity_type = ? AND entity_id = ? AND asset_type = ?`,
			candidateID, key.Entity.Type, key.Entity.ID, key.Asset,
		).Scan(&blocked)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d for %s/%d/%s", ErrCandidateNotFound,
				candidateID, key.Entity.Type, key.Entity.ID, key.Asset)
		}
		if err != nil {
			return fmt.Errorf("check swap target: %w", err)
		}
		if blocked != 0 {
			return fmt.Errorf("%w: id %d", ErrCandidateBlocked, candidateID)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE candidates
             SET is_selected = 0, selected_at = NULL, selected_by = '', updated_at = ?
             WHERE entity_type = ? AND entity_id = ? AND asset_type = ? AND is_selected = 1`,
			now, key.Entity.Type, key.Entity.ID, key.Asset,
		); err != nil {
			return fmt.Errorf("deselect previous: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE candidates
             SET is_selected = 1, selected_at = ?, selected_by = ?, updated_at = ?
             WHERE id = ?`,
			now, selectedBy, now, candidateID,
		); err != nil {
			return fmt.Errorf("select new: %w", err)
		}

		return tx.Commit()
	})
}

// ClearSelection removes the selection for an asset key, if any.
func (s *Store) ClearSelection(ctx context.Context, key assets.AssetKey) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE candidates
         SET is_selected = 0, selected_at = NULL, selected_by = '', updated_at = ?
         WHERE entity_type = ? AND entity_id = ? AND asset_type = ? AND is_selected = 1`,
		now, key.Entity.Type, key.Entity.ID, key.Asset,
	); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// RecordDecision appends one selection decision to the audit trail.
func (s *Store) RecordDecision(ctx context.Context, decision assets.SelectionDecision) error {
	decidedAt := decision.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO decisions (
            id, entity_type, entity_id, asset_type,
            previous_url, new_url, provider, score, reason, applied, decided_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		decision.ID,
		decision.Key.Entity.Type, decision.Key.Entity.ID, decision.Key.Asset,
		decision.PreviousURL, decision.NewURL, decision.Provider,
		decision.Score, decision.Reason, boolToInt(decision.Applied),
		formatTime(decidedAt),
	); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest decisions for an entity, most recent
// first.
func (s *Store) RecentDecisions(ctx context.Context, entity assets.EntityKey, limit int) ([]assets.SelectionDecision, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, entity_type, entity_id, asset_type, previous_url, new_url,
                provider, score, reason, applied, decided_at
         FROM decisions
         WHERE entity_type = ? AND entity_id = ?
         ORDER BY decided_at DESC, id DESC LIMIT ?`,
		entity.Type, entity.ID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var decisions []assets.SelectionDecision
	for rows.Next() {
		var (
			decision   assets.SelectionDecision
			entityType string
			assetType  string
			applied    int
			decidedRaw string
		)
		if err := rows.Scan(
			&decision.ID, &entityType, &decision.Key.Entity.ID, &assetType,
			&decision.PreviousURL, &decision.NewURL, &decision.Provider,
			&decision.Score, &decision.Reason, &applied, &decidedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decision.Key.Entity.Type = assets.EntityType(entityType)
		decision.Key.Asset = assets.AssetType(assetType)
		decision.Applied = applied != 0
		if t, err := parseTimeString(decidedRaw); err == nil {
			decision.DecidedAt = t
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}
