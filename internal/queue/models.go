package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether a status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Type names one kind of work a handler knows how to execute.
type Type string

const (
	TypeRefresh Type = "refresh"
	TypeSelect  Type = "select"
	TypeSweep   Type = "sweep"
	TypeGC      Type = "gc"
)

// Priority orders pending jobs; lower numbers run first. The gaps leave room
// for intermediate classes without renumbering.
type Priority int

const (
	// PriorityWebhook is for work triggered by an external push; reserved
	// rate-limiter headroom exists for this class.
	PriorityWebhook Priority = 0
	// PriorityUserSync is for synchronous user actions awaiting a result.
	PriorityUserSync Priority = 10
	// PriorityUserEnrich is for user-initiated enrichment.
	PriorityUserEnrich Priority = 20
	// PriorityBackground is for routine enrichment and selection.
	PriorityBackground Priority = 30
	// PriorityBulkScan is for full-catalog sweeps, internally chunked.
	PriorityBulkScan Priority = 40
	// PriorityGC is for garbage collection.
	PriorityGC Priority = 50
)

// Urgent reports whether this priority class may draw on the rate limiter's
// reserved capacity.
func (p Priority) Urgent() bool {
	return p <= PriorityUserEnrich
}

// Job is one persisted unit of work.
type Job struct {
	ID              int64
	Type            Type
	Priority        Priority
	Payload         string
	Status          Status
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	RetryCount      int
	MaxRetries      int
	NextRetryAt     *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ErrorMessage    string
	ErrorKind       string
	Cancellable     bool
	CancelRequested bool
	DedupeKey       string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RetriesRemaining reports whether another retry fits the job's budget.
func (j Job) RetriesRemaining() bool {
	return j.RetryCount+1 <= j.MaxRetries
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}
