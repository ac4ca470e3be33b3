package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	ImageCacheDir string `toml:"image_cache_dir"`
	SocketPath    string `toml:"socket_path"`
	LockPath      string `toml:"lock_path"`
}

// RateLimit contains the fixed-window call budget for one provider.
type RateLimit struct {
	MaxRequests      int `toml:"max_requests"`
	WindowSeconds    int `toml:"window_seconds"`
	ReservedCapacity int `toml:"reserved_capacity"`
}

// Provider contains connection settings for one external artwork provider.
type Provider struct {
	Enabled   bool      `toml:"enabled"`
	APIKey    string    `toml:"api_key"`
	BaseURL   string    `toml:"base_url"`
	RateLimit RateLimit `toml:"rate_limit"`
}

// Scoring contains the inputs the candidate scorer needs.
type Scoring struct {
	PreferredLanguage string   `toml:"preferred_language"`
	ProviderOrder     []string `toml:"provider_order"`
}

// Workflow contains daemon timing, retry, and worker-pool settings.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	JobTimeout         int `toml:"job_timeout"`
	MaxRetries         int `toml:"max_retries"`
	BackoffCapSeconds  int `toml:"backoff_cap_seconds"`
}

// Breaker contains circuit breaker thresholds. These are defaults, not hard
// requirements; tune per deployment.
type Breaker struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

// Retention controls pruning of candidates absent from recent fetches.
type Retention struct {
	CandidateRetentionDays int `toml:"candidate_retention_days"`
}

// Scheduler contains cron expressions for periodic background jobs.
type Scheduler struct {
	SweepSchedule string `toml:"sweep_schedule"`
	GCSchedule    string `toml:"gc_schedule"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Selection      bool   `toml:"selection"`
	Sweep          bool   `toml:"sweep"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for keyart.
//
// Configuration sections by subsystem:
//   - Paths: data, log, image cache directories plus IPC socket
//   - TMDB / FanartTV / TVDB: provider credentials and per-provider budgets
//   - Scoring: preferred language and provider priority order
//   - Workflow: worker pool, polling, retry, and timeout settings
//   - Breaker: circuit breaker thresholds
//   - Retention: stale candidate pruning window
//   - Scheduler: cron expressions for sweep and gc jobs
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	TMDB          Provider      `toml:"tmdb"`
	FanartTV      Provider      `toml:"fanarttv"`
	TVDB          Provider      `toml:"tvdb"`
	Scoring       Scoring       `toml:"scoring"`
	Workflow      Workflow      `toml:"workflow"`
	Breaker       Breaker       `toml:"breaker"`
	Retention     Retention     `toml:"retention"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/keyart/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("keyart.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ImageCacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Providers returns the enabled provider sections keyed by provider name.
func (c *Config) Providers() map[string]Provider {
	out := make(map[string]Provider, 3)
	if c.TMDB.Enabled {
		out["tmdb"] = c.TMDB
	}
	if c.FanartTV.Enabled {
		out["fanarttv"] = c.FanartTV
	}
	if c.TVDB.Enabled {
		out["tvdb"] = c.TVDB
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
