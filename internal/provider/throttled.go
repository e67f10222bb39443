package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/ratelimit"
)

// ThrottledSender waits for the tenant's outbound budget before delegating.
// The wait is bounded by maxWait even when the caller's context carries no
// deadline. A limiter failure becomes a failed outcome so it is still recorded.
type ThrottledSender struct {
	next    Sender
	limiter ratelimit.RateLimiter
	maxWait time.Duration
	now     func() time.Time
}

// NewThrottledSender wraps next. A non-positive maxWait leaves the wait bounded
// only by the caller's context.
func NewThrottledSender(next Sender, limiter ratelimit.RateLimiter, maxWait time.Duration) *ThrottledSender {
	return &ThrottledSender{
		next:    next,
		limiter: limiter,
		maxWait: maxWait,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *ThrottledSender) TargetURL() string {
	return s.next.TargetURL()
}

func (s *ThrottledSender) Send(
	ctx context.Context,
	clientID string,
	event domain.NotificationEvent,
	correlationKey *string,
) domain.DeliveryOutcome {
	if s.limiter != nil {
		if err := s.wait(ctx, clientID); err != nil {
			return failureOutcome(err.Error(), nil, s.now())
		}
	}
	return s.next.Send(ctx, clientID, event, correlationKey)
}

func (s *ThrottledSender) wait(ctx context.Context, clientID string) error {
	waitCtx := ctx
	if s.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.maxWait)
		defer cancel()
	}

	err := s.limiter.Wait(waitCtx, clientID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrWaitBudgetExceeded),
		errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("webhook rate limit wait exceeded %s", s.maxWait)
	default:
		return fmt.Errorf("webhook rate limit wait failed: %v", err)
	}
}
