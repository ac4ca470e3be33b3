package daemon

import (
	"fmt"
	"time"

	"log/slog"

	"keyart/internal/breaker"
	"keyart/internal/catalog"
	"keyart/internal/config"
	"keyart/internal/imagecache"
	"keyart/internal/notifications"
	"keyart/internal/providers"
	"keyart/internal/providers/fanarttv"
	"keyart/internal/providers/tmdb"
	"keyart/internal/providers/tvdb"
	"keyart/internal/queue"
	"keyart/internal/ratelimit"
	"keyart/internal/selector"
	"keyart/internal/workflow"
)

// buildEnv assembles the workflow environment: provider clients in priority
// order, one rate limiter and circuit breaker per provider, the selector,
// and the image cache.
func buildEnv(cfg *config.Config, queueStore *queue.Store, catalogStore *catalog.Store, logger *slog.Logger) (*workflow.Env, error) {
	clients, err := buildClients(cfg)
	if err != nil {
		return nil, err
	}

	limiters := ratelimit.NewPool()
	for name, provider := range cfg.Providers() {
		limiters.Register(name, ratelimit.Options{
			MaxRequests: provider.RateLimit.MaxRequests,
			Reserved:    provider.RateLimit.ReservedCapacity,
			Window:      time.Duration(provider.RateLimit.WindowSeconds) * time.Second,
		})
	}

	images, err := imagecache.New(cfg.Paths.ImageCacheDir)
	if err != nil {
		return nil, fmt.Errorf("open image cache: %w", err)
	}

	return &workflow.Env{
		Config:    cfg,
		Queue:     queueStore,
		Catalog:   catalogStore,
		Providers: providers.NewRegistry(clients...),
		Limiters:  limiters,
		Breakers: breaker.NewRegistry(breaker.Options{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		}),
		Selector: selector.New(catalogStore, selector.Options{
			PreferredLanguage: cfg.Scoring.PreferredLanguage,
			ProviderOrder:     cfg.Scoring.ProviderOrder,
		}, logger),
		Images:   images,
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
	}, nil
}

// buildClients constructs one client per enabled provider, ordered by the
// configured provider priority so registry order matches scoring order.
func buildClients(cfg *config.Config) ([]providers.Client, error) {
	enabled := cfg.Providers()
	clients := make([]providers.Client, 0, len(enabled))
	for _, name := range cfg.Scoring.ProviderOrder {
		provider, ok := enabled[name]
		if !ok {
			continue
		}
		switch name {
		case "tmdb":
			clients = append(clients, tmdb.New(provider.APIKey, provider.BaseURL))
		case "fanarttv":
			clients = append(clients, fanarttv.New(provider.APIKey, provider.BaseURL))
		case "tvdb":
			clients = append(clients, tvdb.New(provider.APIKey, provider.BaseURL))
		default:
			return nil, fmt.Errorf("no client for provider %q", name)
		}
	}
	return clients, nil
}
