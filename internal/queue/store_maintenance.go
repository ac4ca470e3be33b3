package queue

import (
	"context"
	"fmt"
	"time"
)

// ReclaimStale returns processing jobs whose heartbeat predates the cutoff
// to pending so another worker can pick them up. Reports how many were
// reclaimed.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?,
             progress_stage = 'Reclaimed', progress_message = 'worker heartbeat lost'
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending, now,
		StatusProcessing, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return affected, nil
}

// RetryFailed resets failed jobs back to pending with a fresh retry budget.
// With ids it targets those jobs; without, every failed job.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE jobs
         SET status = ?, retry_count = 0, next_retry_at = NULL, started_at = NULL,
             completed_at = NULL, error_message = NULL, error_kind = NULL,
             cancel_requested = 0, progress_stage = NULL, progress_percent = 0,
             progress_message = NULL, updated_at = ?
         WHERE status = ?`
	args := []any{StatusPending, now, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return affected, nil
}

// ClearCompleted removes completed jobs and returns the number deleted.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed removes failed jobs and returns the number deleted.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

// ClearCancelled removes cancelled jobs and returns the number deleted.
func (s *Store) ClearCancelled(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCancelled)
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return affected, nil
}

// Stats returns per-status job counts.
func (s *Store) Stats(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("queue stats: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		case StatusCancelled:
			summary.Cancelled = count
		}
	}
	return summary, rows.Err()
}
