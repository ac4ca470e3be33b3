package imagecache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"keyart/internal/services"
)

func TestPutIsContentAddressed(t *testing.T) {
	cache, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	digest, err := cache.Put([]byte("poster bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	again, err := cache.Put([]byte("poster bytes"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if digest != again {
		t.Fatalf("same bytes produced digests %s and %s", digest, again)
	}

	path, ok := cache.Path(digest)
	if !ok {
		t.Fatal("Path did not find stored image")
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "poster bytes" {
		t.Fatalf("stored content = %q err=%v", data, err)
	}

	if _, ok := cache.Path("0000000000000000000000000000000000000000000000000000000000000000"); ok {
		t.Fatal("Path found a digest that was never stored")
	}
}

func TestFetchDownloadsAndClassifies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			_, _ = w.Write([]byte("image data"))
		case "/gone.jpg":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	cache, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	digest, err := cache.Fetch(ctx, server.URL+"/ok.jpg")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := cache.Path(digest); !ok {
		t.Fatal("fetched image not stored")
	}

	if _, err := cache.Fetch(ctx, server.URL+"/gone.jpg"); !errors.Is(err, services.ErrPermanentProvider) {
		t.Fatalf("404 err = %v, want permanent", err)
	}
	if _, err := cache.Fetch(ctx, server.URL+"/boom.jpg"); !errors.Is(err, services.ErrTransientProvider) {
		t.Fatalf("500 err = %v, want transient", err)
	}
}

func TestPruneKeepsReferencedDigests(t *testing.T) {
	cache, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kept, _ := cache.Put([]byte("selected poster"))
	stale, _ := cache.Put([]byte("orphaned poster"))

	removed, err := cache.Prune(map[string]bool{kept: true})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := cache.Path(kept); !ok {
		t.Fatal("referenced digest was pruned")
	}
	if _, ok := cache.Path(stale); ok {
		t.Fatal("orphaned digest survived prune")
	}
}
