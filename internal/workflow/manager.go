package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"keyart/internal/logging"
	"keyart/internal/queue"
)

// Manager coordinates queue processing across a fixed pool of workers.
type Manager struct {
	env          *Env
	logger       *slog.Logger
	handlers     map[queue.Type]Handler
	workers      int
	pollInterval time.Duration
	errorRetry   time.Duration
	jobTimeout   time.Duration
	backoffCap   time.Duration

	heartbeat *HeartbeatMonitor

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager over the shared environment.
// Handlers default to the production set when none are given.
func NewManager(env *Env, handlers ...Handler) *Manager {
	if len(handlers) == 0 {
		handlers = DefaultHandlers()
	}
	registry := make(map[queue.Type]Handler, len(handlers))
	for _, handler := range handlers {
		registry[handler.Type()] = handler
	}

	cfg := env.Config
	logger := logging.NewComponentLogger(env.Logger, "workflow-manager")

	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Manager{
		env:          env,
		logger:       logger,
		handlers:     registry,
		workers:      workers,
		pollInterval: secondsOr(cfg.Workflow.QueuePollInterval, 2*time.Second),
		errorRetry:   secondsOr(cfg.Workflow.ErrorRetryInterval, 5*time.Second),
		jobTimeout:   secondsOr(cfg.Workflow.JobTimeout, 10*time.Minute),
		backoffCap:   secondsOr(cfg.Workflow.BackoffCapSeconds, 5*time.Minute),
		heartbeat: NewHeartbeatMonitor(
			env.Queue,
			logger,
			secondsOr(cfg.Workflow.HeartbeatInterval, 15*time.Second),
			secondsOr(cfg.Workflow.HeartbeatTimeout, 2*time.Minute),
		),
	}
}

func secondsOr(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		return errors.New("no job handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		// Worker 0 doubles as the stale-claim reclaimer.
		go m.runWorker(runCtx, i, i == 0)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent loop-level error, for health output.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
