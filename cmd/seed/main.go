// Command seed loads a notification events snapshot into Postgres so the API
// can run with EVENTS_REPOSITORY=postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/infra/postgresql"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/infra/postgresql/migrations"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"go.uber.org/zap"
)

type seedConfig struct {
	DatabaseDSN  string `env:"DATABASE_DSN,required=true"`
	SnapshotPath string `env:"EVENTS_SNAPSHOT_PATH,default=data/notification_events.json"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
}

func main() {
	var cfg seedConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	path := flag.String("snapshot", cfg.SnapshotPath, "path to the notification events snapshot")
	flag.Parse()

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

	f, err := os.Open(*path)
	if err != nil {
		logger.Fatal("failed to open events snapshot", zap.String("path", *path), zap.Error(err))
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := seedEvents(ctx, f, repository.NewGormEventRepo(db))
	if err != nil {
		logger.Fatal("failed to seed notification events", zap.String("path", *path), zap.Error(err))
	}

	logger.Info("notification events seeded", zap.Int("count", count), zap.String("path", *path))
}

type eventSaver interface {
	Save(ctx context.Context, e *domain.NotificationEvent) error
}

// seedEvents validates the whole snapshot before writing any event.
func seedEvents(ctx context.Context, r io.Reader, repo eventSaver) (int, error) {
	snapshot, err := repository.NewSnapshotEventRepo(r)
	if err != nil {
		return 0, err
	}

	events := snapshot.All()
	for i := range events {
		if err := repo.Save(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("failed to save event %q for client %q: %w", events[i].ID, events[i].ClientID, err)
		}
	}
	return len(events), nil
}
