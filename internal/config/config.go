package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	SenderHTTP = "http"
	SenderNoop = "noop"

	RepositoryJSON     = "json"
	RepositoryPostgres = "postgres"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	WebhookTargetURL      string        `env:"WEBHOOK_TARGET_URL,required=true"`
	WebhookSender         string        `env:"WEBHOOK_SENDER,default=http"`
	WebhookConnectTimeout time.Duration `env:"WEBHOOK_CONNECT_TIMEOUT,default=2s"`
	WebhookReadTimeout    time.Duration `env:"WEBHOOK_READ_TIMEOUT,default=5s"`

	EventsRepository   string `env:"EVENTS_REPOSITORY,default=json"`
	EventsSnapshotPath string `env:"EVENTS_SNAPSHOT_PATH,default=data/notification_events.json"`

	ReplayRateLimitPerSec int           `env:"REPLAY_RATE_LIMIT_PER_SEC,default=10"`
	ReplayGuardTTL        time.Duration `env:"REPLAY_GUARD_TTL,default=30s"`

	// ReplaySubscriptions is "CLIENT=type[,type];...". Empty subscribes everyone.
	ReplaySubscriptions string `env:"REPLAY_SUBSCRIPTIONS"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.WebhookSender = strings.ToLower(strings.TrimSpace(cfg.WebhookSender))
	cfg.EventsRepository = strings.ToLower(strings.TrimSpace(cfg.EventsRepository))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.WebhookSender {
	case SenderHTTP, SenderNoop:
	default:
		return fmt.Errorf("invalid WEBHOOK_SENDER %q: expected %s or %s", c.WebhookSender, SenderHTTP, SenderNoop)
	}

	switch c.EventsRepository {
	case RepositoryJSON, RepositoryPostgres:
	default:
		return fmt.Errorf("invalid EVENTS_REPOSITORY %q: expected %s or %s", c.EventsRepository, RepositoryJSON, RepositoryPostgres)
	}

	if c.WebhookConnectTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_CONNECT_TIMEOUT must be positive")
	}
	if c.WebhookReadTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_READ_TIMEOUT must be positive")
	}
	if c.ReplayGuardTTL <= 0 {
		return fmt.Errorf("REPLAY_GUARD_TTL must be positive")
	}
	if c.ThrottleWaitBudget() <= 0 {
		return fmt.Errorf("REPLAY_GUARD_TTL must exceed WEBHOOK_CONNECT_TIMEOUT plus WEBHOOK_READ_TIMEOUT")
	}
	if c.ReplayRateLimitPerSec <= 0 {
		return fmt.Errorf("REPLAY_RATE_LIMIT_PER_SEC must be positive")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT %d is out of range", c.APIPort)
	}
	return nil
}

// ThrottleWaitBudget is how long a replay may wait for rate limit budget while
// still finishing its transmission inside the guard reservation.
func (c *Config) ThrottleWaitBudget() time.Duration {
	return c.ReplayGuardTTL - c.WebhookConnectTimeout - c.WebhookReadTimeout
}
