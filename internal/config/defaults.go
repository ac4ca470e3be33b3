package config

const (
	defaultDataDir       = "~/.local/share/keyart"
	defaultLogDir        = "~/.local/share/keyart/logs"
	defaultImageCacheDir = "~/.cache/keyart/images"
	defaultSocketPath    = "~/.local/share/keyart/keyartd.sock"
	defaultLockPath      = "~/.local/share/keyart/keyartd.lock"

	defaultTMDBBaseURL     = "https://api.themoviedb.org/3"
	defaultFanartTVBaseURL = "https://webservice.fanart.tv/v3"
	defaultTVDBBaseURL     = "https://api4.thetvdb.com/v4"

	defaultPreferredLanguage = "en"

	defaultWorkers            = 2
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultJobTimeout         = 120
	defaultMaxRetries         = 5
	defaultBackoffCapSeconds  = 300

	defaultBreakerFailureThreshold = 5
	defaultBreakerCooldownSeconds  = 60

	defaultCandidateRetentionDays = 30

	defaultSweepSchedule = "0 3 * * *"
	defaultGCSchedule    = "30 4 * * 0"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

func defaultRateLimit() RateLimit {
	return RateLimit{
		MaxRequests:      40,
		WindowSeconds:    10,
		ReservedCapacity: 4,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			ImageCacheDir: defaultImageCacheDir,
			SocketPath:    defaultSocketPath,
			LockPath:      defaultLockPath,
		},
		TMDB: Provider{
			Enabled:   false,
			BaseURL:   defaultTMDBBaseURL,
			RateLimit: defaultRateLimit(),
		},
		FanartTV: Provider{
			Enabled:   false,
			BaseURL:   defaultFanartTVBaseURL,
			RateLimit: defaultRateLimit(),
		},
		TVDB: Provider{
			Enabled:   false,
			BaseURL:   defaultTVDBBaseURL,
			RateLimit: defaultRateLimit(),
		},
		Scoring: Scoring{
			PreferredLanguage: defaultPreferredLanguage,
			ProviderOrder:     []string{"tmdb", "fanarttv", "tvdb"},
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			JobTimeout:         defaultJobTimeout,
			MaxRetries:         defaultMaxRetries,
			BackoffCapSeconds:  defaultBackoffCapSeconds,
		},
		Breaker: Breaker{
			FailureThreshold: defaultBreakerFailureThreshold,
			CooldownSeconds:  defaultBreakerCooldownSeconds,
		},
		Retention: Retention{
			CandidateRetentionDays: defaultCandidateRetentionDays,
		},
		Scheduler: Scheduler{
			SweepSchedule: defaultSweepSchedule,
			GCSchedule:    defaultGCSchedule,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Selection:      true,
			Sweep:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
