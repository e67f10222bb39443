package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultReplaysPerSec int64 = 10
	pollStep                   = 10 * time.Millisecond
	pollMax                    = 50 * time.Millisecond
	windowWidth                = time.Second
)

// replayWindowScript counts one replay against the tenant's current window and
// reports whether it fits under the limit.
var replayWindowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a fixed-window per-tenant limiter for outbound replays.
// Windows are one second wide and shared by every API instance. Wait gives up
// once the next open window lies beyond maxWait.
type RedisRateLimiter struct {
	client        *goredis.Client
	replaysPerSec int64
	maxWait       time.Duration
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewRedisRateLimiter builds a limiter allowing replaysPerSec transmissions per
// tenant. A non-positive maxWait leaves Wait bounded only by its context.
func NewRedisRateLimiter(client *goredis.Client, replaysPerSec int, maxWait time.Duration) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(replaysPerSec), maxWait, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	replaysPerSec int64,
	maxWait time.Duration,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if replaysPerSec <= 0 {
		replaysPerSec = defaultReplaysPerSec
	}
	if maxWait < 0 {
		maxWait = 0
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:        client,
		replaysPerSec: replaysPerSec,
		maxWait:       maxWait,
		now:           nowFn,
		sleep:         sleepFn,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	tenant := strings.TrimSpace(tenantID)
	if tenant == "" {
		return false, fmt.Errorf("tenant id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	window := r.now().UTC().Truncate(windowWidth)
	key := windowKey(tenant, window)
	result, err := replayWindowScript.Run(
		ctx,
		r.client,
		[]string{key},
		r.replaysPerSec,
		windowWidth.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate replay rate limit for tenant %q: %w", tenant, err)
	}

	return result == 1, nil
}

// Wait polls until the tenant has budget in the current window. Polls never
// sleep past the next window boundary.
func (r *RedisRateLimiter) Wait(ctx context.Context, tenantID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var deadline time.Time
	if r != nil && r.maxWait > 0 {
		deadline = r.now().Add(r.maxWait)
	}

	step := pollStep
	for {
		allowed, err := r.Allow(ctx, tenantID)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		now := r.now()
		pause := step
		if untilNext := untilNextWindow(now); untilNext < pause {
			pause = untilNext
		}
		if !deadline.IsZero() && now.Add(pause).After(deadline) {
			return fmt.Errorf("%w: tenant %q after %s", ratelimit.ErrWaitBudgetExceeded, strings.TrimSpace(tenantID), r.maxWait)
		}

		if err := r.sleep(ctx, pause); err != nil {
			return err
		}

		step += pollStep
		if step > pollMax {
			step = pollMax
		}
	}
}

func windowKey(tenant string, window time.Time) string {
	return fmt.Sprintf("replay_ratelimit:%s:%d", tenant, window.Unix())
}

func untilNextWindow(now time.Time) time.Duration {
	next := now.Truncate(windowWidth).Add(windowWidth)
	return next.Sub(now)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
