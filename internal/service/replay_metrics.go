package service

import (
	"context"
	"errors"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
)

// InstrumentedReplayer counts replay requests by result.
type InstrumentedReplayer struct {
	next    Replayer
	metrics *observability.Metrics
}

func NewInstrumentedReplayer(next Replayer, metrics *observability.Metrics) *InstrumentedReplayer {
	return &InstrumentedReplayer{next: next, metrics: metrics}
}

func (r *InstrumentedReplayer) Replay(
	ctx context.Context,
	clientID, eventID string,
	idempotencyKey *string,
) (*ReplayResult, error) {
	result, err := r.next.Replay(ctx, clientID, eventID, idempotencyKey)
	r.metrics.IncReplayRequest(replayResultLabel(err))
	return result, err
}

func replayResultLabel(err error) string {
	switch {
	case err == nil:
		return observability.ReplayResultAccepted
	case errors.Is(err, domain.ErrNotFound):
		return observability.ReplayResultNotFound
	case errors.Is(err, domain.ErrReplayInProgress):
		return observability.ReplayResultInProgress
	case errors.Is(err, domain.ErrReplayNotAllowed), errors.Is(err, domain.ErrValidation):
		return observability.ReplayResultRejected
	default:
		return observability.ReplayResultFailure
	}
}
