package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"keyart/internal/assets"
)

// ErrCandidateNotFound is returned when an operation targets a candidate id
// that does not exist.
var ErrCandidateNotFound = errors.New("candidate not found")

const candidateColumns = "id, entity_type, entity_id, asset_type, provider, url, width, height, language, quality_tag, hints, file_size, phash, vote_avg, vote_count, score, is_selected, is_blocked, selected_at, selected_by, cache_digest, last_refreshed, created_at, updated_at"

// UpsertCandidates stores a batch of fetched candidates. Rows are unique per
// (entity, asset type, url); a re-fetched candidate refreshes its metadata
// and last_refreshed but never touches selection or block state.
func (s *Store) UpsertCandidates(ctx context.Context, candidates []assets.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (
            entity_type, entity_id, asset_type, provider, url,
            width, height, language, quality_tag, hints,
            file_size, phash, vote_avg, vote_count, score,
            last_refreshed, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_type, entity_id, asset_type, url) DO UPDATE SET
            provider = excluded.provider,
            width = excluded.width,
            height = excluded.height,
            language = excluded.language,
            quality_tag = excluded.quality_tag,
            hints = excluded.hints,
            file_size = excluded.file_size,
            phash = excluded.phash,
            vote_avg = excluded.vote_avg,
            vote_count = excluded.vote_count,
            score = excluded.score,
            last_refreshed = excluded.last_refreshed,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, candidate := range candidates {
		hints := candidate.Hints
		if hints == nil {
			hints = []string{}
		}
		encodedHints, err := json.Marshal(hints)
		if err != nil {
			return fmt.Errorf("marshal hints: %w", err)
		}

		var voteCount any
		if candidate.VoteCount != nil {
			voteCount = *candidate.VoteCount
		}

		if _, err := stmt.ExecContext(ctx,
			candidate.Entity.Type, candidate.Entity.ID, candidate.Asset,
			candidate.Provider, candidate.URL,
			candidate.Width, candidate.Height, candidate.Language,
			candidate.QualityTag, string(encodedHints),
			candidate.FileSize, candidate.PHash, candidate.VoteAvg, voteCount,
			candidate.Score, now, now, now,
		); err != nil {
			return fmt.Errorf("upsert candidate %s: %w", candidate.URL, err)
		}
	}
	return tx.Commit()
}

// ListCandidates returns every stored candidate for one asset key, blocked
// rows included so callers can show them.
func (s *Store) ListCandidates(ctx context.Context, key assets.AssetKey) ([]assets.Candidate, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+candidateColumns+` FROM candidates
         WHERE entity_type = ? AND entity_id = ? AND asset_type = ?
         ORDER BY id`,
		key.Entity.Type, key.Entity.ID, key.Asset,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// ListForEntity returns all candidates across asset types for one entity.
func (s *Store) ListForEntity(ctx context.Context, entity assets.EntityKey) ([]assets.Candidate, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+candidateColumns+` FROM candidates
         WHERE entity_type = ? AND entity_id = ?
         ORDER BY asset_type, id`,
		entity.Type, entity.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entity candidates: %w", err)
	}
	defer rows.Close()
	return collectCandidates(rows)
}

// GetCandidate fetches one candidate by id; nil when absent.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*assets.Candidate, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	candidate, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return candidate, nil
}

// Block permanently excludes a candidate from ranking until unblocked. A
// blocked candidate also loses its selection, so the next selection pass
// promotes a replacement.
func (s *Store) Block(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE candidates
         SET is_blocked = 1, is_selected = 0, selected_at = NULL, selected_by = '', updated_at = ?
         WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("block candidate: %w", err)
	}
	return requireAffected(res, id)
}

// Unblock returns a candidate to the ranking pool.
func (s *Store) Unblock(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE candidates SET is_blocked = 0, updated_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("unblock candidate: %w", err)
	}
	return requireAffected(res, id)
}

// SetCacheDigest records the content digest of the locally cached image.
func (s *Store) SetCacheDigest(ctx context.Context, id int64, digest string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE candidates SET cache_digest = ?, updated_at = ? WHERE id = ?`,
		digest, now, id,
	)
	if err != nil {
		return fmt.Errorf("set cache digest: %w", err)
	}
	return requireAffected(res, id)
}

// PruneStale deletes unselected, unblocked candidates that no fetch has
// confirmed since the cutoff. Selected and blocked rows are never pruned:
// the former is live state, the latter is an operator decision.
func (s *Store) PruneStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM candidates
         WHERE is_selected = 0 AND is_blocked = 0 AND last_refreshed < ?`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune stale candidates: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune stale candidates: %w", err)
	}
	return affected, nil
}

// ListCacheDigests returns the set of cache digests still referenced by a
// candidate, for image cache pruning.
func (s *Store) ListCacheDigests(ctx context.Context) (map[string]bool, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT cache_digest FROM candidates WHERE cache_digest != ''`)
	if err != nil {
		return nil, fmt.Errorf("list cache digests: %w", err)
	}
	defer rows.Close()

	digests := make(map[string]bool)
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("scan cache digest: %w", err)
		}
		digests[digest] = true
	}
	return digests, rows.Err()
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrCandidateNotFound, id)
	}
	return nil
}

func collectCandidates(rows *sql.Rows) ([]assets.Candidate, error) {
	var candidates []assets.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *candidate)
	}
	return candidates, rows.Err()
}

func scanCandidate(scanner interface{ Scan(dest ...any) error }) (*assets.Candidate, error) {
	var (
		entityType   string
		assetType    string
		hintsRaw     string
		voteCount    sql.NullInt64
		isSelected   int
		isBlocked    int
		selectedRaw  sql.NullString
		refreshedRaw string
		createdRaw   string
		updatedRaw   string
	)
	candidate := &assets.Candidate{}

	if err := scanner.Scan(
		&candidate.ID,
		&entityType,
		&candidate.Entity.ID,
		&assetType,
		&candidate.Provider,
		&candidate.URL,
		&candidate.Width,
		&candidate.Height,
		&candidate.Language,
		&candidate.QualityTag,
		&hintsRaw,
		&candidate.FileSize,
		&candidate.PHash,
		&candidate.VoteAvg,
		&voteCount,
		&candidate.Score,
		&isSelected,
		&isBlocked,
		&selectedRaw,
		&candidate.SelectedBy,
		&candidate.CacheDigest,
		&refreshedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	candidate.Entity.Type = assets.EntityType(entityType)
	candidate.Asset = assets.AssetType(assetType)
	candidate.Selected = isSelected != 0
	candidate.Blocked = isBlocked != 0

	if hintsRaw != "" && hintsRaw != "[]" {
		if err := json.Unmarshal([]byte(hintsRaw), &candidate.Hints); err != nil {
			return nil, fmt.Errorf("decode hints: %w", err)
		}
	}
	if voteCount.Valid {
		count := int(voteCount.Int64)
		candidate.VoteCount = &count
	}
	if selectedRaw.Valid {
		if t, err := parseTimeString(selectedRaw.String); err == nil {
			candidate.SelectedAt = &t
		}
	}
	if t, err := parseTimeString(refreshedRaw); err == nil {
		candidate.LastRefreshed = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		candidate.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		candidate.UpdatedAt = t
	}
	return candidate, nil
}
