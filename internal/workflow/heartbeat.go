package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"keyart/internal/logging"
	"keyart/internal/queue"
)

// HeartbeatMonitor keeps in-flight jobs visibly alive and returns claims
// whose worker died to the pending pool.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor builds a monitor over the queue store.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= interval {
		timeout = 4 * interval
	}
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval, timeout: timeout}
}

// Keep starts heartbeating one job until the returned stop function is
// called or the context ends.
func (h *HeartbeatMonitor) Keep(ctx context.Context, jobID int64) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
					h.logger.Warn("heartbeat update failed",
						logging.Error(err),
						logging.Int64(logging.FieldJobID, jobID))
				}
			}
		}
	}()

	var once bool
	return func() {
		if once {
			return
		}
		once = true
		close(done)
		<-finished
	}
}

// ReclaimStale returns processing jobs whose heartbeat went silent for
// longer than the timeout to pending.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		h.logger.Warn("reclaimed stale jobs",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "jobs_reclaimed"))
	}
	return nil
}
