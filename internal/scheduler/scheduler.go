// Package scheduler enqueues the periodic background jobs: the nightly
// catalog sweep and the garbage collection pass. Schedules come from the
// configuration as five-field cron expressions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"keyart/internal/config"
	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/services"
)

// Scheduler owns the cron runner and the job specs it enqueues. Dedupe keys
// keep a slow sweep from stacking up behind itself.
type Scheduler struct {
	cron   *cron.Cron
	queue  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a scheduler from the configured cron expressions. Schedules
// were validated at config load time, so parse failures here are reported
// as configuration errors.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cron: cron.New(cron.WithParser(
			cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		queue:  store,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "scheduler")),
	}

	if _, err := s.cron.AddFunc(cfg.Scheduler.SweepSchedule, s.EnqueueSweep); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "add_sweep",
			"invalid sweep schedule", err)
	}
	if _, err := s.cron.AddFunc(cfg.Scheduler.GCSchedule, s.EnqueueGC); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "add_gc",
			"invalid gc schedule", err)
	}
	return s, nil
}

// Start begins firing the configured schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.String("sweep_schedule", s.cfg.Scheduler.SweepSchedule),
		logging.String("gc_schedule", s.cfg.Scheduler.GCSchedule))
}

// Stop halts the schedules and waits for any in-flight enqueue to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
}

// EnqueueSweep queues a full catalog sweep. Also used by the CLI to trigger
// a sweep outside its schedule.
func (s *Scheduler) EnqueueSweep() {
	job, err := s.queue.Enqueue(context.Background(), queue.NewJob{
		Type:        queue.TypeSweep,
		Priority:    queue.PriorityBulkScan,
		MaxRetries:  s.cfg.Workflow.MaxRetries,
		Cancellable: true,
		DedupeKey:   "scheduled:sweep",
	})
	if err != nil {
		s.logger.Error("sweep enqueue failed", logging.Error(err))
		return
	}
	s.logger.Info("sweep scheduled", logging.Int64(logging.FieldJobID, job.ID))
}

// EnqueueGC queues a garbage collection pass.
func (s *Scheduler) EnqueueGC() {
	job, err := s.queue.Enqueue(context.Background(), queue.NewJob{
		Type:      queue.TypeGC,
		Priority:  queue.PriorityGC,
		DedupeKey: "scheduled:gc",
	})
	if err != nil {
		s.logger.Error("gc enqueue failed", logging.Error(err))
		return
	}
	s.logger.Info("gc scheduled", logging.Int64(logging.FieldJobID, job.ID))
}
