package config

import "strings"

// normalize expands path fields and fills in zero values with defaults so
// the rest of the daemon never has to re-check them.
func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.ImageCacheDir,
		&c.Paths.SocketPath,
		&c.Paths.LockPath,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Scoring.PreferredLanguage = strings.ToLower(strings.TrimSpace(c.Scoring.PreferredLanguage))
	if c.Scoring.PreferredLanguage == "" {
		c.Scoring.PreferredLanguage = defaultPreferredLanguage
	}
	if len(c.Scoring.ProviderOrder) == 0 {
		c.Scoring.ProviderOrder = Default().Scoring.ProviderOrder
	}
	for i, name := range c.Scoring.ProviderOrder {
		c.Scoring.ProviderOrder[i] = strings.ToLower(strings.TrimSpace(name))
	}

	normalizeProvider(&c.TMDB, defaultTMDBBaseURL)
	normalizeProvider(&c.FanartTV, defaultFanartTVBaseURL)
	normalizeProvider(&c.TVDB, defaultTVDBBaseURL)

	defaults := Default()
	intDefaults := []struct {
		field *int
		value int
	}{
		{&c.Workflow.Workers, defaults.Workflow.Workers},
		{&c.Workflow.QueuePollInterval, defaults.Workflow.QueuePollInterval},
		{&c.Workflow.ErrorRetryInterval, defaults.Workflow.ErrorRetryInterval},
		{&c.Workflow.HeartbeatInterval, defaults.Workflow.HeartbeatInterval},
		{&c.Workflow.HeartbeatTimeout, defaults.Workflow.HeartbeatTimeout},
		{&c.Workflow.JobTimeout, defaults.Workflow.JobTimeout},
		{&c.Workflow.MaxRetries, defaults.Workflow.MaxRetries},
		{&c.Workflow.BackoffCapSeconds, defaults.Workflow.BackoffCapSeconds},
		{&c.Breaker.FailureThreshold, defaults.Breaker.FailureThreshold},
		{&c.Breaker.CooldownSeconds, defaults.Breaker.CooldownSeconds},
		{&c.Retention.CandidateRetentionDays, defaults.Retention.CandidateRetentionDays},
		{&c.Notifications.RequestTimeout, defaults.Notifications.RequestTimeout},
	}
	for _, d := range intDefaults {
		if *d.field <= 0 {
			*d.field = d.value
		}
	}

	if strings.TrimSpace(c.Scheduler.SweepSchedule) == "" {
		c.Scheduler.SweepSchedule = defaultSweepSchedule
	}
	if strings.TrimSpace(c.Scheduler.GCSchedule) == "" {
		c.Scheduler.GCSchedule = defaultGCSchedule
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func normalizeProvider(p *Provider, baseURL string) {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	defaults := defaultRateLimit()
	if p.RateLimit.MaxRequests <= 0 {
		p.RateLimit.MaxRequests = defaults.MaxRequests
	}
	if p.RateLimit.WindowSeconds <= 0 {
		p.RateLimit.WindowSeconds = defaults.WindowSeconds
	}
	if p.RateLimit.ReservedCapacity < 0 {
		p.RateLimit.ReservedCapacity = 0
	}
}
