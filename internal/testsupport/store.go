package testsupport

import (
	"context"
	"testing"

	"keyart/internal/assets"
	"keyart/internal/catalog"
	"keyart/internal/config"
	"keyart/internal/queue"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedEntity stores a movie entity with the given TMDB id.
func SeedEntity(t testing.TB, store *catalog.Store, id int64, title, tmdbID string) assets.Entity {
	t.Helper()
	return SeedEntityFor(t, store, id, title, "tmdb", tmdbID)
}

// SeedEntityFor stores a movie entity whose external id lives under the
// given provider name.
func SeedEntityFor(t testing.TB, store *catalog.Store, id int64, title, provider, externalID string) assets.Entity {
	t.Helper()
	entity := assets.Entity{
		Key:         assets.EntityKey{Type: assets.EntityMovie, ID: id},
		Title:       title,
		ExternalIDs: map[string]string{provider: externalID},
	}
	if err := store.UpsertEntity(context.Background(), entity); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	return entity
}

// Candidate builds a poster candidate for the given entity with sensible
// defaults; tweak the result as needed.
func Candidate(entity assets.EntityKey, provider, url string) assets.Candidate {
	return assets.Candidate{
		Entity:   entity,
		Asset:    assets.AssetPoster,
		Provider: provider,
		URL:      url,
		Width:    2000,
		Height:   3000,
		Language: "en",
	}
}
