package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a queue job in a transport-friendly format.
type JobView struct {
	ID              int64       `json:"id"`
	Type            string      `json:"type"`
	Priority        int         `json:"priority"`
	Status          string      `json:"status"`
	Progress        JobProgress `json:"progress"`
	RetryCount      int         `json:"retryCount"`
	MaxRetries      int         `json:"maxRetries"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	ErrorKind       string      `json:"errorKind,omitempty"`
	Cancellable     bool        `json:"cancellable"`
	CancelRequested bool        `json:"cancelRequested,omitempty"`
	DedupeKey       string      `json:"dedupeKey,omitempty"`
	NextRetryAt     string      `json:"nextRetryAt,omitempty"`
	CreatedAt       string      `json:"createdAt,omitempty"`
	UpdatedAt       string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// CandidateView describes one stored artwork candidate.
type CandidateView struct {
	ID          int64   `json:"id"`
	EntityType  string  `json:"entityType"`
	EntityID    int64   `json:"entityId"`
	AssetType   string  `json:"assetType"`
	Provider    string  `json:"provider"`
	URL         string  `json:"url"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Language    string  `json:"language,omitempty"`
	VoteAvg     float64 `json:"voteAvg,omitempty"`
	VoteCount   *int    `json:"voteCount,omitempty"`
	Selected    bool    `json:"selected"`
	SelectedBy  string  `json:"selectedBy,omitempty"`
	Blocked     bool    `json:"blocked"`
	CacheDigest string  `json:"cacheDigest,omitempty"`
}

// DecisionView describes one recorded selection decision.
type DecisionView struct {
	ID          string  `json:"id"`
	EntityType  string  `json:"entityType"`
	EntityID    int64   `json:"entityId"`
	AssetType   string  `json:"assetType"`
	PreviousURL string  `json:"previousUrl,omitempty"`
	NewURL      string  `json:"newUrl,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
	Applied     bool    `json:"applied"`
	DecidedAt   string  `json:"decidedAt,omitempty"`
}

// Snapshot aggregates daemon runtime information for status consumers.
type Snapshot struct {
	Running     bool              `json:"running"`
	PID         int               `json:"pid"`
	QueueDBPath string            `json:"queueDbPath"`
	LockPath    string            `json:"lockPath"`
	QueueStats  map[string]int    `json:"queueStats"`
	Breakers    map[string]string `json:"breakers,omitempty"`
	Entities    int               `json:"entities"`
	LastError   string            `json:"lastError,omitempty"`
}
