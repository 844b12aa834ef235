// Command worker corre los jobs de fondo: drain de la cola offline y
// renovación de suscripciones.
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

	"github.com/mockforge/mockforge/internal/billing"
	"github.com/mockforge/mockforge/internal/config"
	"github.com/mockforge/mockforge/internal/domain/repository"
	"github.com/mockforge/mockforge/internal/observability/logger"
	"github.com/mockforge/mockforge/internal/offline"
	"github.com/mockforge/mockforge/internal/store/memory"
	"github.com/mockforge/mockforge/internal/store/pg"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Init(logger.Config{Level: "info"})
		logger.L().Fatal("config load failed", logger.Err(err))
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Env: cfg.App.Env, ServiceName: "mockforge-worker"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if cfg.Queue.RedisAddr == "" {
		log.Fatal("queue.redis_addr / QUEUE_REDIS_ADDR requerido para el worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		queue repository.QueueRepository
		pays  repository.PaymentRepository
		subs  repository.SubscriptionRepository
		clean = func() {}
	)
	if cfg.Storage.Driver == "memory" {
		s := memory.New()
		queue, pays, subs = s.Queue, s.Payments, s.Subscriptions
	} else {
		s, err := pg.New(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxOpenConns, cfg.Storage.Postgres.MaxIdleConns)
		if err != nil {
			log.Fatal("storage init failed", logger.Err(err))
		}
		queue, pays, subs = s.Queue, s.Payments, s.Subscriptions
		clean = s.Close
	}
	defer clean()

	provider := billing.NewStripeProvider(
		cfg.Billing.StripeSecretKey,
		cfg.Billing.WebhookSigningKey,
		cfg.Billing.SuccessURL,
		cfg.Billing.CancelURL,
	)
	billingService := billing.NewService(provider, pays, subs)

	// Con apply_url configurada los cambios drenados se replican por HTTP
	// al backend de aplicación; sin ella solo se loggea cada replay.
	var applier offline.Applier = logApplier{}
	if cfg.Offline.ApplyURL != "" {
		applier = offline.NewHTTPApplier(cfg.Offline.ApplyURL, &http.Client{Timeout: cfg.UpstreamTimeout()})
	}
	drain := offline.NewDrainWorker(queue, applier, cfg.Offline.MaxRetries)

	mux := asynq.NewServeMux()
	drain.Register(mux)
	billingService.RegisterRenewal(mux)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues:      map[string]int{"offline": 6, "default": 4},
		},
	)

	// Renovaciones: un tick diario alcanza; el task es idempotente.
	go renewLoop(ctx, cfg.Queue.RedisAddr)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	log.Info("worker starting", logger.String("redis", cfg.Queue.RedisAddr))
	if err := srv.Run(mux); err != nil {
		log.Fatal("worker exited", logger.Err(err))
	}
	log.Info("worker stopped")
}

// logApplier es el fallback sin apply_url: deja constancia del replay
// sin replicarlo a ningún backend.
type logApplier struct{}

func (logApplier) ApplyChange(ctx context.Context, ch repository.QueuedChange) error {
	logger.From(ctx).Info("queued change replayed",
		logger.Entity(string(ch.Entity)),
		logger.String("type", string(ch.Type)),
		logger.UserID(ch.UserID),
	)
	return nil
}

func renewLoop(ctx context.Context, redisAddr string) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			task := billing.NewRenewTask()
			if _, err := client.EnqueueContext(ctx, task); err != nil {
				logger.L().Warn("enqueue renew failed", logger.Err(err))
			}
		}
	}
}
