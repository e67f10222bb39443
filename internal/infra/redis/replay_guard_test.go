package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestReplayGuardReserveAndRelease(t *testing.T) {
	t.Parallel()

	guard, err := NewReplayGuard(newTestRedisClient(t), time.Minute)
	if err != nil {
		t.Fatalf("NewReplayGuard() error = %v", err)
	}

	ctx := context.Background()
	token, ok, err := guard.Reserve(ctx, "CLIENT001", "EVT001", "retry-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !ok || token == "" {
		t.Fatalf("Reserve() = (%q, %v), want token and true", token, ok)
	}

	_, ok, err = guard.Reserve(ctx, "CLIENT001", "EVT001", "retry-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if ok {
		t.Fatal("second reservation for the same triple should fail")
	}

	_, ok, err = guard.Reserve(ctx, "CLIENT002", "EVT001", "retry-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !ok {
		t.Fatal("other tenant should get its own reservation")
	}

	if err := guard.Release(ctx, "CLIENT001", "EVT001", "retry-1", token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	_, ok, err = guard.Reserve(ctx, "CLIENT001", "EVT001", "retry-1")
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if !ok {
		t.Fatal("reservation should be free after release")
	}
}

func TestReplayGuardReleaseIgnoresForeignToken(t *testing.T) {
	t.Parallel()

	guard, err := NewReplayGuard(newTestRedisClient(t), time.Minute)
	if err != nil {
		t.Fatalf("NewReplayGuard() error = %v", err)
	}

	ctx := context.Background()
	if _, ok, err := guard.Reserve(ctx, "CLIENT001", "EVT001", "k"); err != nil || !ok {
		t.Fatalf("Reserve() = (%v, %v), want success", ok, err)
	}

	if err := guard.Release(ctx, "CLIENT001", "EVT001", "k", "someone-else"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, ok, _ := guard.Reserve(ctx, "CLIENT001", "EVT001", "k"); ok {
		t.Fatal("reservation held by another token must survive a foreign release")
	}
}

func TestReplayGuardExpires(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	guard, err := NewReplayGuard(rdb, 5*time.Second)
	if err != nil {
		t.Fatalf("NewReplayGuard() error = %v", err)
	}

	ctx := context.Background()
	if _, ok, err := guard.Reserve(ctx, "CLIENT001", "EVT001", "k"); err != nil || !ok {
		t.Fatalf("Reserve() = (%v, %v), want success", ok, err)
	}

	mr.FastForward(6 * time.Second)

	if _, ok, err := guard.Reserve(ctx, "CLIENT001", "EVT001", "k"); err != nil || !ok {
		t.Fatalf("Reserve() after ttl = (%v, %v), want success", ok, err)
	}
}

func TestReplayGuardKeyIsUnambiguous(t *testing.T) {
	t.Parallel()

	if replayGuardKey("a:b", "c", "k") == replayGuardKey("a", "b:c", "k") {
		t.Fatal("keys for different triples must differ")
	}
}
