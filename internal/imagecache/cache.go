// Package imagecache stores downloaded artwork on disk, addressed by the
// SHA-256 of the image bytes so re-downloads of identical content collapse
// into one file.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"keyart/internal/services"
)

// Cache is a content-addressed image store rooted at one directory.
type Cache struct {
	root string
	http *http.Client
}

// New builds a cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("image cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache dir: %w", err)
	}
	return &Cache{
		root: dir,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Put stores image bytes and returns their digest.
func (c *Cache) Put(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	path := c.pathFor(digest)
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	// Write-then-rename so readers never observe a partial file.
	tmp, err := os.CreateTemp(c.root, "put-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("commit image: %w", err)
	}
	return digest, nil
}

// Path returns the on-disk location for a digest and whether it exists.
func (c *Cache) Path(digest string) (string, bool) {
	if len(digest) < 3 {
		return "", false
	}
	path := c.pathFor(digest)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Fetch downloads a URL into the cache and returns the content digest.
// Failures are classified like provider calls so the worker retries
// sensibly.
func (c *Cache) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "imagecache", "fetch", "build request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", services.Wrap(services.ErrTransientProvider, "imagecache", "fetch", "download failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", services.Wrap(services.ErrPermanentProvider, "imagecache", "fetch", "image gone", nil)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", services.Wrap(services.ErrTransientProvider, "imagecache", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return "", services.Wrap(services.ErrPermanentProvider, "imagecache", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransientProvider, "imagecache", "fetch", "read body", err)
	}
	digest, err := c.Put(data)
	if err != nil {
		return "", services.Wrap(services.ErrInfrastructure, "imagecache", "fetch", "store image", err)
	}
	return digest, nil
}

// Prune removes cached files whose digest the keep set does not contain,
// returning the number deleted. GC passes the digests still referenced by
// candidates.
func (c *Cache) Prune(keep map[string]bool) (int, error) {
	removed := 0
	err := filepath.WalkDir(c.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		digest := entry.Name()
		if len(digest) != sha256.Size*2 {
			// Leftover temp file or foreign content; not ours to manage.
			return nil
		}
		if keep[digest] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune image cache: %w", err)
	}
	return removed, nil
}

// Files are sharded by the first two digest characters to keep directories
// small.
func (c *Cache) pathFor(digest string) string {
	return filepath.Join(c.root, digest[:2], digest)
}
