package ipc

import "keyart/internal/api"

// StatusRequest asks for the daemon status snapshot.
type StatusRequest struct{}

// StatusResponse carries the daemon status snapshot.
type StatusResponse struct {
	Running     bool              `json:"running"`
	PID         int               `json:"pid"`
	QueueDBPath string            `json:"queueDbPath"`
	LockPath    string            `json:"lockPath"`
	QueueStats  map[string]int    `json:"queueStats"`
	Breakers    map[string]string `json:"breakers,omitempty"`
	Entities    int               `json:"entities"`
	LastError   string            `json:"lastError,omitempty"`
}

// StopRequest asks the daemon to stop background processing.
type StopRequest struct{}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueListRequest filters jobs by status names; empty means all.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

type QueueListResponse struct {
	Jobs []api.JobView `json:"jobs"`
}

// QueueDescribeRequest fetches one job by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

type QueueDescribeResponse struct {
	Job api.JobView `json:"job"`
}

// QueueCancelRequest requests cancellation of one job.
type QueueCancelRequest struct {
	ID int64 `json:"id"`
}

type QueueCancelResponse struct {
	Status string `json:"status"`
}

// QueueRetryRequest returns failed jobs to pending; empty IDs retries all.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids,omitempty"`
}

type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueClearRequest removes finished jobs in one terminal status.
type QueueClearRequest struct {
	Status string `json:"status"`
}

type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// RefreshRequest queues a provider fetch for one entity.
type RefreshRequest struct {
	EntityType string   `json:"entityType"`
	EntityID   int64    `json:"entityId"`
	AssetTypes []string `json:"assetTypes,omitempty"`
	NoSelect   bool     `json:"noSelect,omitempty"`
	Urgent     bool     `json:"urgent,omitempty"`
}

type RefreshResponse struct {
	Job api.JobView `json:"job"`
}

// SelectRequest queues auto-selection over stored candidates.
type SelectRequest struct {
	EntityType string   `json:"entityType"`
	EntityID   int64    `json:"entityId"`
	AssetTypes []string `json:"assetTypes,omitempty"`
}

type SelectResponse struct {
	Job api.JobView `json:"job"`
}

// SweepRequest queues a full catalog sweep.
type SweepRequest struct{}

type SweepResponse struct {
	Job api.JobView `json:"job"`
}

// GCRequest queues a garbage collection pass.
type GCRequest struct{}

type GCResponse struct {
	Job api.JobView `json:"job"`
}

// CandidatesRequest lists stored candidates for one entity.
type CandidatesRequest struct {
	EntityType string `json:"entityType"`
	EntityID   int64  `json:"entityId"`
}

type CandidatesResponse struct {
	Candidates []api.CandidateView `json:"candidates"`
}

// ChooseRequest applies a manual selection, optionally locking the slot.
type ChooseRequest struct {
	CandidateID int64 `json:"candidateId"`
	Lock        bool  `json:"lock,omitempty"`
}

type ChooseResponse struct{}

// BlockRequest blocks or unblocks one candidate.
type BlockRequest struct {
	CandidateID int64 `json:"candidateId"`
	Unblock     bool  `json:"unblock,omitempty"`
}

type BlockResponse struct{}

// LockRequest pins or unpins one asset slot against auto-selection.
type LockRequest struct {
	EntityType string `json:"entityType"`
	EntityID   int64  `json:"entityId"`
	AssetType  string `json:"assetType"`
	Locked     bool   `json:"locked"`
}

type LockResponse struct{}

// DecisionsRequest lists recent selection decisions for one entity.
type DecisionsRequest struct {
	EntityType string `json:"entityType"`
	EntityID   int64  `json:"entityId"`
	Limit      int    `json:"limit,omitempty"`
}

type DecisionsResponse struct {
	Decisions []api.DecisionView `json:"decisions"`
}

// LogTailRequest reads daemon log lines. A negative offset returns the
// last Limit lines; clients poll with the returned offset afterwards.
type LogTailRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit,omitempty"`
}

type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest sends a test push.
type TestNotificationRequest struct{}

type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
