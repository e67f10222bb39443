package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultReplayGuardTTL = 30 * time.Second

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReplayGuard reserves a (tenant, event, idempotency key) triple while one replay
// is transmitting, so concurrent callers with the same key cannot both deliver.
type ReplayGuard struct {
	client   *goredis.Client
	ttl      time.Duration
	newToken func() string
}

func NewReplayGuard(client *goredis.Client, ttl time.Duration) (*ReplayGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultReplayGuardTTL
	}

	return &ReplayGuard{
		client:   client,
		ttl:      ttl,
		newToken: uuid.NewString,
	}, nil
}

// Reserve returns the reservation token and true when the triple was free.
func (g *ReplayGuard) Reserve(ctx context.Context, clientID, eventID, key string) (string, bool, error) {
	if g == nil || g.client == nil {
		return "", false, fmt.Errorf("replay guard is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	token := g.newToken()
	ok, err := g.client.SetNX(ctx, replayGuardKey(clientID, eventID, key), token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve replay: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the reservation only if it is still held by token.
func (g *ReplayGuard) Release(ctx context.Context, clientID, eventID, key, token string) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("replay guard is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := releaseScript.Run(ctx, g.client, []string{replayGuardKey(clientID, eventID, key)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release replay reservation: %w", err)
	}
	return nil
}

// Tenant and event ids are opaque, so the triple is hashed instead of joined with separators.
func replayGuardKey(clientID, eventID, key string) string {
	sum := sha256.Sum256([]byte(clientID + "\x00" + eventID + "\x00" + key))
	return "replay_guard:" + hex.EncodeToString(sum[:])
}
