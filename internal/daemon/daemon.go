// Package daemon assembles the stores, provider clients, workers, and
// scheduler into one process and enforces single-instance execution via a
// file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"keyart/internal/api"
	"keyart/internal/catalog"
	"keyart/internal/config"
	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/scheduler"
	"keyart/internal/workflow"
)

// Daemon coordinates the background services.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	queue     *queue.Store
	catalog   *catalog.Store
	manager   *workflow.Manager
	scheduler *scheduler.Scheduler
	service   *api.Service

	lockPath string
	logPath  string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	QueueDBPath string
	LockPath    string
	LastError   string
}

// New builds a fully wired daemon from the configuration. Stores are opened
// immediately; workers and schedules start in Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		_ = queueStore.Close()
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	env, err := buildEnv(cfg, queueStore, catalogStore, logger)
	if err != nil {
		_ = queueStore.Close()
		_ = catalogStore.Close()
		return nil, err
	}

	sched, err := scheduler.New(cfg, queueStore, logger)
	if err != nil {
		_ = queueStore.Close()
		_ = catalogStore.Close()
		return nil, err
	}

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		queue:     queueStore,
		catalog:   catalogStore,
		manager:   workflow.NewManager(env),
		scheduler: sched,
		service: api.NewService(api.Deps{
			Queue:    queueStore,
			Catalog:  catalogStore,
			Selector: env.Selector,
			Breakers: env.Breakers,
			Notifier: env.Notifier,
			Logger:   logger,
		}),
		lockPath: cfg.Paths.LockPath,
		logPath:  filepath.Join(cfg.Paths.LogDir, "keyartd.log"),
		lock:     flock.New(cfg.Paths.LockPath),
	}, nil
}

// Start acquires the instance lock and launches workers and schedules.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another keyart daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workers: %w", err)
	}
	d.scheduler.Start()
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("keyart daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts schedules and workers and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.scheduler.Stop()
	d.manager.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("keyart daemon stopped")
}

// Close stops the daemon and closes both stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.queue != nil {
		errs = append(errs, d.queue.Close())
	}
	if d.catalog != nil {
		errs = append(errs, d.catalog.Close())
	}
	return errors.Join(errs...)
}

// API exposes the daemon-side service layer for IPC handlers.
func (d *Daemon) API() *api.Service {
	return d.service
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Running reports whether workers are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		QueueDBPath: d.queue.Path(),
		LockPath:    d.lockPath,
	}
	if err := d.manager.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}
