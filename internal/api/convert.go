package api

import (
	"time"

	"keyart/internal/assets"
	"keyart/internal/queue"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

// FromJob converts a queue job into its transport form.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	return JobView{
		ID:       job.ID,
		Type:     string(job.Type),
		Priority: int(job.Priority),
		Status:   string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		RetryCount:      job.RetryCount,
		MaxRetries:      job.MaxRetries,
		ErrorMessage:    job.ErrorMessage,
		ErrorKind:       job.ErrorKind,
		Cancellable:     job.Cancellable,
		CancelRequested: job.CancelRequested,
		DedupeKey:       job.DedupeKey,
		NextRetryAt:     formatTimePtr(job.NextRetryAt),
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a job slice, skipping nils.
func FromJobs(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		views = append(views, FromJob(job))
	}
	return views
}

// FromCandidate converts a stored candidate into its transport form.
func FromCandidate(candidate assets.Candidate) CandidateView {
	return CandidateView{
		ID:          candidate.ID,
		EntityType:  string(candidate.Entity.Type),
		EntityID:    candidate.Entity.ID,
		AssetType:   string(candidate.Asset),
		Provider:    candidate.Provider,
		URL:         candidate.URL,
		Width:       candidate.Width,
		Height:      candidate.Height,
		Language:    candidate.Language,
		VoteAvg:     candidate.VoteAvg,
		VoteCount:   candidate.VoteCount,
		Selected:    candidate.Selected,
		SelectedBy:  candidate.SelectedBy,
		Blocked:     candidate.Blocked,
		CacheDigest: candidate.CacheDigest,
	}
}

// FromCandidates converts a candidate slice.
func FromCandidates(candidates []assets.Candidate) []CandidateView {
	views := make([]CandidateView, 0, len(candidates))
	for _, candidate := range candidates {
		views = append(views, FromCandidate(candidate))
	}
	return views
}

// FromDecision converts a selection decision into its transport form.
func FromDecision(decision assets.SelectionDecision) DecisionView {
	return DecisionView{
		ID:          decision.ID,
		EntityType:  string(decision.Key.Entity.Type),
		EntityID:    decision.Key.Entity.ID,
		AssetType:   string(decision.Key.Asset),
		PreviousURL: decision.PreviousURL,
		NewURL:      decision.NewURL,
		Provider:    decision.Provider,
		Score:       decision.Score,
		Reason:      decision.Reason,
		Applied:     decision.Applied,
		DecidedAt:   formatTime(decision.DecidedAt),
	}
}

// FromDecisions converts a decision slice.
func FromDecisions(decisions []assets.SelectionDecision) []DecisionView {
	views := make([]DecisionView, 0, len(decisions))
	for _, decision := range decisions {
		views = append(views, FromDecision(decision))
	}
	return views
}

// QueueStatsMap flattens a health summary into status-keyed counts.
func QueueStatsMap(summary queue.HealthSummary) map[string]int {
	return map[string]int{
		"total":                        summary.Total,
		string(queue.StatusPending):    summary.Pending,
		string(queue.StatusProcessing): summary.Processing,
		string(queue.StatusCompleted):  summary.Completed,
		string(queue.StatusFailed):     summary.Failed,
		string(queue.StatusCancelled):  summary.Cancelled,
	}
}
