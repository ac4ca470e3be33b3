package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keyart/internal/config"
)

func TestDefaultIsValidAfterNormalize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`[paths]`,
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		`image_cache_dir = "` + filepath.Join(dir, "cache") + `"`,
		`socket_path = "` + filepath.Join(dir, "keyartd.sock") + `"`,
		`lock_path = "` + filepath.Join(dir, "keyartd.lock") + `"`,
		``,
		`[tmdb]`,
		`enabled = true`,
		`api_key = "test-key"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("resolved path %q, want %q", resolved, path)
	}
	if cfg.Workflow.MaxRetries != 5 {
		t.Fatalf("expected default max_retries 5, got %d", cfg.Workflow.MaxRetries)
	}
	if cfg.TMDB.BaseURL == "" {
		t.Fatal("expected TMDB base URL default")
	}
	if cfg.TMDB.RateLimit.MaxRequests <= cfg.TMDB.RateLimit.ReservedCapacity {
		t.Fatal("expected reserved capacity below max requests")
	}
}

func TestValidateRejectsEnabledProviderWithoutKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`[fanarttv]`,
		`enabled = true`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "fanarttv.api_key") {
		t.Fatalf("expected api key validation error, got %v", err)
	}
}

func TestValidateRejectsBadCron(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`[tmdb]`,
		`api_key = "k"`,
		``,
		`[scheduler]`,
		`sweep_schedule = "not a cron spec"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "sweep_schedule") {
		t.Fatalf("expected cron validation error, got %v", err)
	}
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Scoring.PreferredLanguage != "en" {
		t.Fatalf("expected default preferred language, got %q", cfg.Scoring.PreferredLanguage)
	}
	if len(cfg.Scoring.ProviderOrder) == 0 {
		t.Fatal("expected default provider order")
	}
}
