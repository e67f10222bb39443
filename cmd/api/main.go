package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/config"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/handler"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/infra/postgresql"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/infra/postgresql/migrations"
	infraredis "github.com/diego-val-vel/notifications-webhook-service-divv/internal/infra/redis"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/provider"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/service"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/subscription"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	events, err := newEventRepository(cfg, db)
	if err != nil {
		logger.Fatal("event store initialization failed", zap.Error(err))
	}
	attempts := repository.NewGormAttemptRepo(db)

	sender, err := newSender(cfg)
	if err != nil {
		logger.Fatal("webhook sender initialization failed", zap.Error(err))
	}
	waitBudget := cfg.ThrottleWaitBudget()
	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.ReplayRateLimitPerSec, waitBudget)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}
	sender = provider.NewInstrumentedSender(provider.NewThrottledSender(sender, limiter, waitBudget), metrics, logger)

	subscriptions, err := subscription.ParseTable(cfg.ReplaySubscriptions)
	if err != nil {
		logger.Fatal("subscription table is invalid", zap.Error(err))
	}

	guard, err := infraredis.NewReplayGuard(rdb, cfg.ReplayGuardTTL)
	if err != nil {
		logger.Fatal("replay guard initialization failed", zap.Error(err))
	}

	replaySvc, err := service.NewReplayService(
		events,
		attempts,
		sender,
		subscriptions,
		guard,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("replay service initialization failed", zap.Error(err))
	}
	eventSvc, err := service.NewEventService(events, attempts, logger)
	if err != nil {
		logger.Fatal("event service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               "notifications-webhook-service",
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, map[string]handler.ReadinessCheck{
		"postgres": handler.SQLCheck(sqlDB),
		"redis":    handler.RedisCheck(rdb),
	})
	if err := handler.RegisterEventRoutes(app, eventSvc, service.NewInstrumentedReplayer(replaySvc, metrics)); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notifications webhook api started",
			zap.Int("port", cfg.APIPort),
			zap.String("eventsRepository", cfg.EventsRepository),
			zap.String("webhookSender", cfg.WebhookSender),
		)
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api stopped with error", zap.Error(err))
	}
}

func newEventRepository(cfg *config.Config, db *gorm.DB) (repository.EventRepository, error) {
	if cfg.EventsRepository == config.RepositoryPostgres {
		return repository.NewGormEventRepo(db), nil
	}
	return repository.NewSnapshotEventRepoFromFile(cfg.EventsSnapshotPath)
}

func newSender(cfg *config.Config) (provider.Sender, error) {
	if cfg.WebhookSender == config.SenderNoop {
		return provider.NewNoopSender(cfg.WebhookTargetURL), nil
	}
	return provider.NewWebhookSender(provider.WebhookConfig{
		TargetURL:      cfg.WebhookTargetURL,
		ConnectTimeout: cfg.WebhookConnectTimeout,
		ReadTimeout:    cfg.WebhookReadTimeout,
	})
}
