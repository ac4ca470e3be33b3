package workflow

import (
	"context"
	"log/slog"

	"keyart/internal/breaker"
	"keyart/internal/catalog"
	"keyart/internal/config"
	"keyart/internal/imagecache"
	"keyart/internal/logging"
	"keyart/internal/notifications"
	"keyart/internal/providers"
	"keyart/internal/queue"
	"keyart/internal/ratelimit"
	"keyart/internal/selector"
	"keyart/internal/services"
)

// Env bundles the shared collaborators job handlers run against.
type Env struct {
	Config    *config.Config
	Queue     *queue.Store
	Catalog   *catalog.Store
	Providers *providers.Registry
	Limiters  *ratelimit.Pool
	Breakers  *breaker.Registry
	Selector  *selector.AutoSelector
	Images    *imagecache.Cache
	Notifier  notifications.Service
	Logger    *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

// fetchThrough runs one provider call through the provider's rate limiter
// and circuit breaker. Urgent priorities may draw on the limiter's reserved
// headroom. Breaker rejections come back as transient errors so the job
// retries after the cooldown. Terminal answers such as "not found" pass
// through without advancing the breaker's failure streak.
func (e *Env) fetchThrough(ctx context.Context, provider string, urgent bool, call func() error) error {
	if e.Limiters != nil {
		if err := e.Limiters.Acquire(ctx, provider, urgent); err != nil {
			return err
		}
	}
	if e.Breakers != nil {
		return e.Breakers.For(provider).DoClassified(call, services.CountsTowardBreaker)
	}
	return call()
}
