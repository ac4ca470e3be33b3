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

// UpsertEntity records or refreshes the minimal entity row this core keeps:
// title and per-provider external identifiers.
func (s *Store) UpsertEntity(ctx context.Context, entity assets.Entity) error {
	ids := entity.ExternalIDs
	if ids == nil {
		ids = map[string]string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal external ids: %w", err)
	}

	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO entities (entity_type, entity_id, title, external_ids, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (entity_type, entity_id) DO UPDATE SET
             title = excluded.title,
             external_ids = excluded.external_ids,
             updated_at = excluded.updated_at`,
		entity.Key.Type, entity.Key.ID, entity.Title, string(encoded), now, now,
	); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}

// GetEntity fetches one entity; nil when absent.
func (s *Store) GetEntity(ctx context.Context, key assets.EntityKey) (*assets.Entity, error) {
	ctx = ensureContext(ctx)
	var (
		title string
		raw   string
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT title, external_ids FROM entities WHERE entity_type = ? AND entity_id = ?`,
		key.Type, key.ID,
	).Scan(&title, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}

	ids := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("decode external ids: %w", err)
		}
	}
	return &assets.Entity{Key: key, Title: title, ExternalIDs: ids}, nil
}

// ListEntities returns a chunk of entities ordered by (type, id), starting
// after the cursor when one is given. Bulk sweeps page through the catalog
// with this so a full scan never loads everything at once.
func (s *Store) ListEntities(ctx context.Context, after *assets.EntityKey, limit int) ([]assets.Entity, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT entity_type, entity_id, title, external_ids FROM entities
             ORDER BY entity_type, entity_id LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT entity_type, entity_id, title, external_ids FROM entities
             WHERE entity_type > ? OR (entity_type = ? AND entity_id > ?)
             ORDER BY entity_type, entity_id LIMIT ?`,
			after.Type, after.Type, after.ID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []assets.Entity
	for rows.Next() {
		var (
			entityType string
			entityID   int64
			title      string
			raw        string
		)
		if err := rows.Scan(&entityType, &entityID, &title, &raw); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		ids := map[string]string{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				return nil, fmt.Errorf("decode external ids: %w", err)
			}
		}
		entities = append(entities, assets.Entity{
			Key:         assets.EntityKey{Type: assets.EntityType(entityType), ID: entityID},
			Title:       title,
			ExternalIDs: ids,
		})
	}
	return entities, rows.Err()
}

// CountEntities reports the catalog size, used by sweep progress reporting.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return count, nil
}
