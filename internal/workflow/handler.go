package workflow

import (
	"context"

	"keyart/internal/queue"
)

// Handler executes one job type. Execute returns nil on success; errors are
// classified by internal/services to decide between retry and terminal
// failure. Long handlers must call checkpoint-style cancellation checks
// (queue.Store.CancelRequested) between units of work.
type Handler interface {
	Type() queue.Type
	Execute(ctx context.Context, env *Env, job *queue.Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	JobType queue.Type
	Run     func(ctx context.Context, env *Env, job *queue.Job) error
}

func (h HandlerFunc) Type() queue.Type { return h.JobType }

func (h HandlerFunc) Execute(ctx context.Context, env *Env, job *queue.Job) error {
	return h.Run(ctx, env, job)
}

// DefaultHandlers returns the production handler set.
func DefaultHandlers() []Handler {
	return []Handler{
		RefreshHandler{},
		SelectHandler{},
		SweepHandler{},
		GCHandler{},
	}
}
