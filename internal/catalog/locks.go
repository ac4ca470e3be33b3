package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keyart/internal/assets"
)

// IsLocked reports whether an asset key is locked against automated writes.
// Locks are owned by the surrounding catalog UI; this core only reads them,
// except through SetLock which exists for that UI surface and for tests.
func (s *Store) IsLocked(ctx context.Context, key assets.AssetKey) (bool, error) {
	ctx = ensureContext(ctx)
	var locked int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT locked FROM locks WHERE entity_type = ? AND entity_id = ? AND asset_type = ?`,
		key.Entity.Type, key.Entity.ID, key.Asset,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock: %w", err)
	}
	return locked != 0, nil
}

// SetLock records a lock state for an asset key.
func (s *Store) SetLock(ctx context.Context, key assets.AssetKey, locked bool) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO locks (entity_type, entity_id, asset_type, locked, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (entity_type, entity_id, asset_type) DO UPDATE SET
             locked = excluded.locked,
             updated_at = excluded.updated_at`,
		key.Entity.Type, key.Entity.ID, key.Asset, boolToInt(locked), now,
	); err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return nil
}
