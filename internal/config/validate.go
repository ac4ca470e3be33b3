package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks semantic constraints the decoder cannot express.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		problems = append(problems, "paths.socket_path must be set")
	}

	for name, provider := range c.Providers() {
		if strings.TrimSpace(provider.APIKey) == "" {
			problems = append(problems, fmt.Sprintf("%s.api_key must be set when %s is enabled", name, name))
		}
		if provider.RateLimit.ReservedCapacity >= provider.RateLimit.MaxRequests {
			problems = append(problems, fmt.Sprintf("%s.rate_limit.reserved_capacity must be below max_requests", name))
		}
	}

	for _, name := range c.Scoring.ProviderOrder {
		switch name {
		case "tmdb", "fanarttv", "tvdb":
		default:
			problems = append(problems, fmt.Sprintf("scoring.provider_order contains unknown provider %q", name))
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.SweepSchedule); err != nil {
		problems = append(problems, fmt.Sprintf("scheduler.sweep_schedule: %v", err))
	}
	if _, err := parser.Parse(c.Scheduler.GCSchedule); err != nil {
		problems = append(problems, fmt.Sprintf("scheduler.gc_schedule: %v", err))
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
