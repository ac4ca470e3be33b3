package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keyart/internal/assets"
)

// LedgerEntry is the refresh bookkeeping for one (provider, entity) pair.
type LedgerEntry struct {
	Provider     string
	Entity       assets.EntityKey
	LastChecked  time.Time
	LastModified time.Time
}

// TouchLedger records a provider check. last_checked always moves forward;
// last_modified moves only when the provider reported an actual change.
// First contact counts as a change so the entry starts consistent.
func (s *Store) TouchLedger(ctx context.Context, provider string, entity assets.EntityKey, changed bool) error {
	now := formatTime(time.Now())
	var query string
	if changed {
		query = `INSERT INTO refresh_ledger (provider, entity_type, entity_id, last_checked, last_modified)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT (provider, entity_type, entity_id) DO UPDATE SET
                 last_checked = excluded.last_checked,
                 last_modified = excluded.last_modified`
	} else {
		query = `INSERT INTO refresh_ledger (provider, entity_type, entity_id, last_checked, last_modified)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT (provider, entity_type, entity_id) DO UPDATE SET
                 last_checked = excluded.last_checked`
	}
	if _, err := s.execWithRetry(ctx, query, provider, entity.Type, entity.ID, now, now); err != nil {
		return fmt.Errorf("touch ledger: %w", err)
	}
	return nil
}

// LedgerEntryFor returns the ledger record for one (provider, entity), or
// nil when the pair has never been checked.
func (s *Store) LedgerEntryFor(ctx context.Context, provider string, entity assets.EntityKey) (*LedgerEntry, error) {
	ctx = ensureContext(ctx)
	var checkedRaw, modifiedRaw string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT last_checked, last_modified FROM refresh_ledger
         WHERE provider = ? AND entity_type = ? AND entity_id = ?`,
		provider, entity.Type, entity.ID,
	).Scan(&checkedRaw, &modifiedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	entry := &LedgerEntry{Provider: provider, Entity: entity}
	if t, err := parseTimeString(checkedRaw); err == nil {
		entry.LastChecked = t
	}
	if t, err := parseTimeString(modifiedRaw); err == nil {
		entry.LastModified = t
	}
	return entry, nil
}

// UnchangedSince reports whether the provider has been checked for this
// entity and reported no change after the given time. Never-checked pairs
// return false so the first sweep always fetches.
func (s *Store) UnchangedSince(ctx context.Context, provider string, entity assets.EntityKey, since time.Time) (bool, error) {
	entry, err := s.LedgerEntryFor(ctx, provider, entity)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return !entry.LastModified.After(since), nil
}
