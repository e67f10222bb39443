package ratelimit

import (
	"context"
	"errors"
)

// ErrWaitBudgetExceeded is returned by Wait when the tenant window would not
// open again before the wait budget runs out.
var ErrWaitBudgetExceeded = errors.New("rate limit wait budget exceeded")

// RateLimiter controls outbound webhook throughput per tenant.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
	Wait(ctx context.Context, tenantID string) error
}
