package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotCancellable is returned when cancellation is requested for a job
// that opted out of it or already reached a terminal state.
var ErrNotCancellable = errors.New("job is not cancellable")

// ErrCancelled is returned by a handler that observed a cancellation
// request at a checkpoint and stopped cleanly.
var ErrCancelled = errors.New("job cancelled cooperatively")

// NewJob describes the parameters for enqueueing one job.
type NewJob struct {
	Type        Type
	Priority    Priority
	Payload     any
	MaxRetries  int
	Cancellable bool
	// DedupeKey suppresses duplicate enqueues: when a pending or processing
	// job with the same key exists, Enqueue returns that job instead of
	// inserting a new one. Selection jobs use the asset key here so at most
	// one selection is in flight per (entity, asset type).
	DedupeKey string
}

// Enqueue inserts a job, honoring duplicate suppression via DedupeKey.
func (s *Store) Enqueue(ctx context.Context, spec NewJob) (*Job, error) {
	ctx = ensureContext(ctx)
	if spec.Type == "" {
		return nil, errors.New("job type is required")
	}

	payload := spec.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if spec.DedupeKey != "" {
		existing, err := s.findByDedupeKey(ctx, spec.DedupeKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if spec.MaxRetries < 0 {
		spec.MaxRetries = 0
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            type, priority, payload, status, max_retries,
            cancellable, dedupe_key, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(spec.Type),
		int(spec.Priority),
		string(data),
		StatusPending,
		spec.MaxRetries,
		boolToInt(spec.Cancellable),
		nullableString(spec.DedupeKey),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *Store) findByDedupeKey(ctx context.Context, key string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE dedupe_key = ? AND status IN (?, ?)
         ORDER BY id LIMIT 1`,
		key, StatusPending, StatusProcessing,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by dedupe key: %w", err)
	}
	return job, nil
}

// Claim atomically transitions the most urgent eligible pending job to
// processing and returns it. Eligible means next_retry_at is unset or not
// in the future. Returns nil when no job is ready. The claim and the status
// transition are a single UPDATE so concurrent workers never double-claim.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET status = ?, started_at = ?, last_heartbeat = ?, updated_at = ?,
                 progress_stage = 'Claimed', progress_percent = 0, progress_message = NULL
             WHERE id = (
                 SELECT id FROM jobs
                 WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
                 ORDER BY priority ASC, created_at ASC, id ASC
                 LIMIT 1
             )
             RETURNING `+jobColumns,
			StatusProcessing, now, now, now,
			StatusPending, now,
		)
		claimed, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by identifier; nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), most urgent and oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY priority, created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Complete marks a processing job as completed.
func (s *Store) Complete(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, completed_at = ?, updated_at = ?, last_heartbeat = NULL,
             progress_stage = 'Completed', progress_percent = 100, error_message = NULL, error_kind = NULL
         WHERE id = ? AND status = ?`,
		StatusCompleted, now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// MarkFailed terminally fails a job, recording its last error.
func (s *Store) MarkFailed(ctx context.Context, id int64, message, kind string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, completed_at = ?, updated_at = ?, last_heartbeat = NULL,
             progress_stage = 'Failed', error_message = ?, error_kind = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, now, now,
		nullableString(message), nullableString(kind),
		id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ScheduleRetry returns a processing job to pending with an incremented
// retry count and a next_retry_at gate.
func (s *Store) ScheduleRetry(ctx context.Context, id int64, delay time.Duration, message, kind string) error {
	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, retry_count = retry_count + 1, next_retry_at = ?, updated_at = ?,
             last_heartbeat = NULL, progress_stage = 'Awaiting retry', progress_percent = 0,
             error_message = ?, error_kind = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		now.Add(delay).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableString(message), nullableString(kind),
		id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// RequestCancel honors external cancellation. Pending cancellable jobs are
// cancelled immediately; processing cancellable jobs get a flag the handler
// observes at its next checkpoint. Terminal or non-cancellable jobs return
// ErrNotCancellable.
func (s *Store) RequestCancel(ctx context.Context, id int64) (Status, error) {
	ctx = ensureContext(ctx)
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("job %d not found", id)
	}
	if !job.Cancellable || job.Status.IsTerminal() {
		return job.Status, ErrNotCancellable
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	switch job.Status {
	case StatusPending:
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, completed_at = ?, updated_at = ?, progress_stage = 'Cancelled'
             WHERE id = ? AND status = ?`,
			StatusCancelled, now, now, id, StatusPending,
		); err != nil {
			return "", fmt.Errorf("cancel pending job: %w", err)
		}
		return StatusCancelled, nil
	case StatusProcessing:
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status = ?`,
			now, id, StatusProcessing,
		); err != nil {
			return "", fmt.Errorf("flag cancel: %w", err)
		}
		return StatusProcessing, nil
	default:
		return job.Status, ErrNotCancellable
	}
}

// CancelRequested reports whether a running job has been asked to stop.
// Handlers poll this at safe checkpoints.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// AcknowledgeCancel finalizes a cooperative cancellation: the handler has
// reached a checkpoint and stopped cleanly.
func (s *Store) AcknowledgeCancel(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, completed_at = ?, updated_at = ?, last_heartbeat = NULL,
             progress_stage = 'Cancelled'
         WHERE id = ? AND status = ?`,
		StatusCancelled, now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("acknowledge cancel: %w", err)
	}
	return nil
}

// UpdateProgress records handler progress for UI consumption.
func (s *Store) UpdateProgress(ctx context.Context, id int64, stage, message string, percent float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_message = ?, progress_percent = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(stage), nullableString(message), percent, now, id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

const jobColumns = "id, type, priority, payload, status, progress_stage, progress_percent, progress_message, retry_count, max_retries, next_retry_at, started_at, completed_at, error_message, error_kind, cancellable, cancel_requested, dedupe_key, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		jobType         string
		priority        int
		payload         string
		statusStr       string
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		retryCount      int
		maxRetries      int
		nextRetryRaw    sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		cancellable     int
		cancelRequested int
		dedupeKey       sql.NullString
		heartbeatRaw    sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&priority,
		&payload,
		&statusStr,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&retryCount,
		&maxRetries,
		&nextRetryRaw,
		&startedRaw,
		&completedRaw,
		&errorMessage,
		&errorKind,
		&cancellable,
		&cancelRequested,
		&dedupeKey,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Type:            Type(jobType),
		Priority:        Priority(priority),
		Payload:         payload,
		Status:          Status(statusStr),
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		RetryCount:      retryCount,
		MaxRetries:      maxRetries,
		ErrorMessage:    errorMessage.String,
		ErrorKind:       errorKind.String,
		Cancellable:     cancellable != 0,
		CancelRequested: cancelRequested != 0,
		DedupeKey:       dedupeKey.String,
	}

	assignTime := func(raw sql.NullString, dest **time.Time) {
		if !raw.Valid {
			return
		}
		if t, err := parseTimeString(raw.String); err == nil {
			*dest = &t
		}
	}
	assignTime(nextRetryRaw, &job.NextRetryAt)
	assignTime(startedRaw, &job.StartedAt)
	assignTime(completedRaw, &job.CompletedAt)
	assignTime(heartbeatRaw, &job.LastHeartbeat)

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
