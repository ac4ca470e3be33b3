// Package testsupport provides shared fixtures for package tests: configs
// rooted in per-test temp directories, opened stores with cleanup, and
// candidate builders.
package testsupport

import (
	"path/filepath"
	"testing"

	"keyart/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Providers stay disabled; tests that need one enable it with an option.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ImageCacheDir = filepath.Join(base, "images")
	cfg.Paths.SocketPath = filepath.Join(base, "keyart.sock")
	cfg.Paths.LockPath = filepath.Join(base, "keyart.lock")
	cfg.Workflow.Workers = 1
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithProvider enables one provider with a test key and base URL, usually
// an httptest server.
func WithProvider(name, apiKey, baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		provider := config.Provider{Enabled: true, APIKey: apiKey, BaseURL: baseURL}
		switch name {
		case "tmdb":
			provider.RateLimit = cfg.TMDB.RateLimit
			cfg.TMDB = provider
		case "fanarttv":
			provider.RateLimit = cfg.FanartTV.RateLimit
			cfg.FanartTV = provider
		case "tvdb":
			provider.RateLimit = cfg.TVDB.RateLimit
			cfg.TVDB = provider
		}
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = workers
	}
}
