// Command service corre la API HTTP: catálogo de integraciones, flujo
// OAuth, sync, modo offline y billing.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/mockforge/mockforge/internal/billing"
	"github.com/mockforge/mockforge/internal/cache"
	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/dispatch"
	"github.com/mockforge/mockforge/internal/domain/repository"
	billingctrl "github.com/mockforge/mockforge/internal/http/controllers/billing"
	healthctrl "github.com/mockforge/mockforge/internal/http/controllers/health"
	integrationsctrl "github.com/mockforge/mockforge/internal/http/controllers/integrations"
	offlinectrl "github.com/mockforge/mockforge/internal/http/controllers/offline"
	mw "github.com/mockforge/mockforge/internal/http/middlewares"
	"github.com/mockforge/mockforge/internal/http/router"
	"github.com/mockforge/mockforge/internal/http/server"
	integrationssvc "github.com/mockforge/mockforge/internal/http/services/integrations"
	"github.com/mockforge/mockforge/internal/metrics"
	"github.com/mockforge/mockforge/internal/oauth"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/offline"
	"github.com/mockforge/mockforge/internal/platform"
	platformall "github.com/mockforge/mockforge/internal/platform/all"
	"github.com/mockforge/mockforge/internal/rate"
	"github.com/mockforge/mockforge/internal/store/memory"
	"github.com/mockforge/mockforge/internal/store/pg"
)

// repos agrupa los repositorios que el wiring necesita, sea cual sea el driver.
type repos struct {
	integrations  repository.IntegrationRepository
	connections   repository.ConnectionRepository
	states        repository.StateRepository
	queue         repository.QueueRepository
	payments      repository.PaymentRepository
	subscriptions repository.SubscriptionRepository

	ping  func(ctx context.Context) error
	close func()
}

func main() {
	_ = godotenv.Load(".env")

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Init(logger.Config{Level: "info"})
		logger.L().Fatal("config load failed", logger.Err(err))
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Env: cfg.App.Env, ServiceName: "mockforge"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	r, err := buildRepos(ctx, cfg)
	if err != nil {
		log.Fatal("storage init failed", logger.Err(err))
	}
	defer r.close()

	if err := seedCatalog(ctx, r.integrations); err != nil {
		log.Fatal("catalog seed failed", logger.Err(err))
	}
	if err := cfg.Validate(activePlatforms(ctx, r.integrations)); err != nil {
		log.Fatal("config invalid", logger.Err(err))
	}

	// Cache: fast-path de desarrollo y sonda de conectividad del modo offline.
	cacheClient, err := cache.New(cache.Config{
		Kind:   cfg.Cache.Kind,
		Addr:   cfg.Cache.Redis.Addr,
		DB:     cfg.Cache.Redis.DB,
		Prefix: cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		log.Fatal("cache init failed", logger.Err(err))
	}
	defer cacheClient.Close()

	if err := metrics.Register(nil); err != nil {
		log.Fatal("metrics register failed", logger.Err(err))
	}

	// OAuth + dispatch
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout()}
	states := oauth.NewStateStore(r.states, cfg.StateTTL())
	lifecycle := oauth.NewLifecycle(r.connections, httpClient)
	registry := platformall.NewRegistry(platform.HandlerConfig{HTTPClient: httpClient})
	dispatcher := dispatch.New(r.integrations, r.connections, lifecycle, registry, cfg.Platforms, cfg.UpstreamTimeout())

	// Offline: la sonda combina cache (redis) y storage.
	probe := func(ctx context.Context) error {
		if err := cacheClient.Ping(ctx); err != nil {
			return err
		}
		return r.ping(ctx)
	}
	var enqueuer *asynq.Client
	if cfg.Queue.RedisAddr != "" {
		enqueuer = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr})
		defer enqueuer.Close()
	}
	var coordinator *offline.Coordinator
	if enqueuer != nil {
		coordinator = offline.NewCoordinator(r.queue, probe, enqueuer, cfg.RetryBaseDelay(), cfg.Offline.MaxRetries)
	} else {
		coordinator = offline.NewCoordinator(r.queue, probe, nil, cfg.RetryBaseDelay(), cfg.Offline.MaxRetries)
	}

	// Billing
	provider := billing.NewStripeProvider(
		cfg.Billing.StripeSecretKey,
		cfg.Billing.WebhookSigningKey,
		cfg.Billing.SuccessURL,
		cfg.Billing.CancelURL,
	)
	billingService := billing.NewService(provider, r.payments, r.subscriptions)
	// Las operaciones de sync que publican mockups descuentan cuota.
	dispatcher.SetQuotaGuard(billingService)

	// HTTP
	integrationsService := integrationssvc.NewService(
		r.integrations, r.connections, states, lifecycle, dispatcher, cfg.Platforms,
	)
	handler := router.New(router.Deps{
		Integrations: integrationsctrl.NewController(integrationsService, cfg.App.Origin),
		Offline:      offlinectrl.NewController(coordinator, buildApplier(cfg, httpClient)),
		Billing:      billingctrl.NewController(billingService),
		Health: healthctrl.NewController(map[string]healthctrl.Check{
			"storage": r.ping,
			"cache":   cacheClient.Ping,
		}),
		Auth:               mw.WithAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer),
		RateLimit:          mw.WithRateLimit(buildLimiter(cfg)),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	// Purga periódica de states vencidos.
	go purgeStatesLoop(ctx, states)

	if err := server.New(cfg.Server.Addr, handler).Run(ctx); err != nil {
		log.Fatal("server exited", logger.Err(err))
	}
	log.Info("shutdown complete")
}

// buildLimiter arma el rate limiter: redis si el cache es redis (límite
// compartido entre réplicas), memoria en desarrollo.
func buildLimiter(cfg *config.Config) rate.Limiter {
	if cfg.Server.RateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.Cache.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:", cfg.Server.RateLimitPerMinute, time.Minute)
	}
	return rate.NewMemoryLimiter(cfg.Server.RateLimitPerMinute, time.Minute)
}

func buildRepos(ctx context.Context, cfg *config.Config) (*repos, error) {
	if cfg.Storage.Driver == "memory" {
		s := memory.New()
		return &repos{
			integrations:  s.Integrations,
			connections:   s.Connections,
			states:        s.States,
			queue:         s.Queue,
			payments:      s.Payments,
			subscriptions: s.Subscriptions,
			ping:          func(context.Context) error { return nil },
			close:         func() {},
		}, nil
	}

	s, err := pg.New(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxOpenConns, cfg.Storage.Postgres.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	return &repos{
		integrations:  s.Integrations,
		connections:   s.Connections,
		states:        s.States,
		queue:         s.Queue,
		payments:      s.Payments,
		subscriptions: s.Subscriptions,
		ping:          s.Ping,
		close:         s.Close,
	}, nil
}

// seedCatalog publica el catálogo de integraciones (idempotente).
func seedCatalog(ctx context.Context, repo repository.IntegrationRepository) error {
	catalog := []repository.Integration{
		{ID: "shopify", Name: "Shopify", Category: "ecommerce", Status: repository.IntegrationActive},
		{ID: "etsy", Name: "Etsy", Category: "ecommerce", Status: repository.IntegrationActive},
		{ID: "dropbox", Name: "Dropbox", Category: "storage", Status: repository.IntegrationActive},
		{ID: "gdrive", Name: "Google Drive", Category: "storage", Status: repository.IntegrationActive},
		{ID: "figma", Name: "Figma", Category: "design", Status: repository.IntegrationComingSoon},
		{ID: "canva", Name: "Canva", Category: "design", Status: repository.IntegrationComingSoon},
	}
	for i := range catalog {
		d, err := platform.DescriptorFor(catalog[i].ID)
		if err != nil {
			return err
		}
		catalog[i].OAuthConfig = repository.OAuthConfig{
			AuthURL:  d.AuthURL,
			TokenURL: d.TokenURL,
			Scopes:   d.Scopes,
		}
		if _, err := repo.GetByID(ctx, catalog[i].ID); err == nil {
			continue // el operador pudo haber cambiado el status: no pisar
		}
		if err := repo.Upsert(ctx, catalog[i]); err != nil {
			return err
		}
	}
	return nil
}

func activePlatforms(ctx context.Context, repo repository.IntegrationRepository) []config.Platform {
	list, err := repo.List(ctx)
	if err != nil {
		return nil
	}
	var out []config.Platform
	for _, it := range list {
		if it.Status != repository.IntegrationActive {
			continue
		}
		if p, ok := config.ParsePlatform(it.ID); ok {
			out = append(out, p)
		}
	}
	return out
}

// buildApplier arma el apply online de mutaciones. Con offline.apply_url
// configurada cada mutación se replica por HTTP al backend de aplicación
// (mismo forwarder que usa el drain del worker); sin ella se valida y
// confirma local.
func buildApplier(cfg *config.Config, client *http.Client) offlinectrl.Applier {
	ack := func(typ repository.ChangeType, entity repository.ChangeEntity) any {
		return map[string]any{
			"applied": true,
			"type":    string(typ),
			"entity":  string(entity),
		}
	}
	if cfg.Offline.ApplyURL == "" {
		return func(ctx context.Context, userID string, typ repository.ChangeType, entity repository.ChangeEntity, data []byte) (any, error) {
			return ack(typ, entity), nil
		}
	}

	forwarder := offline.NewHTTPApplier(cfg.Offline.ApplyURL, client)
	return func(ctx context.Context, userID string, typ repository.ChangeType, entity repository.ChangeEntity, data []byte) (any, error) {
		err := forwarder.ApplyChange(ctx, repository.QueuedChange{
			Type:      typ,
			Entity:    entity,
			Data:      data,
			UserID:    userID,
			Timestamp: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		return ack(typ, entity), nil
	}
}

func purgeStatesLoop(ctx context.Context, states *oauth.StateStore) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := states.PurgeExpired(ctx); err == nil && n > 0 {
				logger.L().Debug("expired oauth states purged", logger.Count(n))
			}
		}
	}
}
