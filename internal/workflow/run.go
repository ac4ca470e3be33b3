package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/services"
)

func (m *Manager) runWorker(ctx context.Context, index int, reclaims bool) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reclaims {
			if err := m.heartbeat.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reclaim stale processing failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"))
			}
		}

		job, err := m.env.Queue.Claim(ctx)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"))
			if !m.waitOrShutdown(ctx, m.errorRetry) {
				return
			}
			continue
		}
		if job == nil {
			if !m.waitOrShutdown(ctx, m.pollInterval) {
				return
			}
			continue
		}

		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	handler, ok := m.handlers[job.Type]
	if !ok {
		m.finishFailed(ctx, logger, job,
			services.Wrap(services.ErrValidation, "workflow", "dispatch",
				fmt.Sprintf("no handler for job type %q", job.Type), nil))
		return
	}

	jobLogger := logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)))
	jobLogger.Info("job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.Int("retry", job.RetryCount))

	// Soft per-job deadline, independent of any rate limiter wait inside the
	// handler: a hung provider call becomes a retryable timeout instead of
	// wedging the worker.
	jobCtx, cancelJob := context.WithTimeout(ctx, m.jobTimeout)
	jobCtx = services.WithJobID(jobCtx, job.ID)
	stopHeartbeat := m.heartbeat.Keep(jobCtx, job.ID)

	err := m.executeGuarded(jobCtx, handler, job)
	stopHeartbeat()
	if errors.Is(err, context.DeadlineExceeded) && jobCtx.Err() != nil && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, "workflow", "execute",
			fmt.Sprintf("job exceeded %s", m.jobTimeout), err)
	}
	cancelJob()

	switch {
	case err == nil:
		m.finishCompleted(ctx, jobLogger, job)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Daemon shutdown: leave the job processing; the heartbeat reclaimer
		// returns it to pending on the next start.
		jobLogger.Debug("job interrupted by shutdown")
	case errors.Is(err, queue.ErrCancelled):
		m.finishCancelled(ctx, jobLogger, job)
	default:
		m.finishError(ctx, jobLogger, job, err)
	}
}

// infrastructureResource names the breaker fed by local persistence and
// filesystem failures, shared by every worker.
const infrastructureResource = "infrastructure"

// executeGuarded runs the handler under the infrastructure breaker. Only
// failures marked ErrInfrastructure advance its streak; provider and
// validation errors pass through untouched. While the circuit is open, jobs
// are bounced back to the queue with backoff instead of hammering a
// persistence layer that is already down.
func (m *Manager) executeGuarded(ctx context.Context, handler Handler, job *queue.Job) error {
	if m.env.Breakers == nil {
		return handler.Execute(ctx, m.env, job)
	}
	invoked := false
	err := m.env.Breakers.For(infrastructureResource).DoClassified(func() error {
		invoked = true
		return handler.Execute(ctx, m.env, job)
	}, func(execErr error) bool {
		return errors.Is(execErr, services.ErrInfrastructure)
	})
	if err != nil && !invoked {
		err = services.Wrap(services.ErrInfrastructure, "workflow", "execute",
			"local persistence unavailable", err)
	}
	return err
}

func (m *Manager) finishCompleted(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if err := m.env.Queue.Complete(ctx, job.ID); err != nil {
		m.setLastError(err)
		logger.Error("failed to mark job completed", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.String(logging.FieldEventType, "job_completed"))
}

func (m *Manager) finishCancelled(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if err := m.env.Queue.AcknowledgeCancel(ctx, job.ID); err != nil {
		m.setLastError(err)
		logger.Error("failed to acknowledge cancellation", logging.Error(err))
		return
	}
	logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
}

func (m *Manager) finishError(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	kind := services.Kind(jobErr)

	if services.Retryable(jobErr) && job.RetriesRemaining() {
		delay := queue.Backoff(job.RetryCount, m.backoffCap)
		if err := m.env.Queue.ScheduleRetry(ctx, job.ID, delay, jobErr.Error(), kind); err != nil {
			m.setLastError(err)
			logger.Error("failed to schedule retry", logging.Error(err))
			return
		}
		logger.Warn("job failed, retry scheduled",
			logging.Error(jobErr),
			logging.String(logging.FieldEventType, "job_retry_scheduled"),
			logging.String(logging.FieldErrorKind, kind),
			logging.Duration("delay", delay),
			logging.Int("retry", job.RetryCount+1))
		return
	}

	m.finishFailed(ctx, logger, job, jobErr)
}

func (m *Manager) finishFailed(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	kind := services.Kind(jobErr)
	if err := m.env.Queue.MarkFailed(ctx, job.ID, jobErr.Error(), kind); err != nil {
		m.setLastError(err)
		logger.Error("failed to mark job failed", logging.Error(err))
		return
	}
	logger.Error("job failed terminally",
		logging.Error(jobErr),
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, kind))

	if m.env.Notifier != nil {
		if err := m.env.Notifier.NotifyJobFailed(ctx, string(job.Type), job.ID, jobErr); err != nil {
			logger.Debug("failure notification not delivered", logging.Error(err))
		}
	}
}
