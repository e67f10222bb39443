package provider

import (
	"context"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
	"go.uber.org/zap"
)

// InstrumentedSender records metrics and one structured log line per delivery attempt.
type InstrumentedSender struct {
	next    Sender
	metrics *observability.Metrics
	logger  *zap.Logger
	since   func(time.Time) time.Duration
}

func NewInstrumentedSender(next Sender, metrics *observability.Metrics, logger *zap.Logger) *InstrumentedSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedSender{
		next:    next,
		metrics: metrics,
		logger:  logger,
		since:   time.Since,
	}
}

func (s *InstrumentedSender) TargetURL() string {
	return s.next.TargetURL()
}

func (s *InstrumentedSender) Send(
	ctx context.Context,
	clientID string,
	event domain.NotificationEvent,
	correlationKey *string,
) domain.DeliveryOutcome {
	start := time.Now()
	outcome := s.next.Send(ctx, clientID, event, correlationKey)
	elapsed := s.since(start)

	s.metrics.IncDeliveryAttempt(outcome.Delivered)
	s.metrics.ObserveDeliveryLatency(elapsed)

	result := domain.AttemptResultFailure
	if outcome.Delivered {
		result = domain.AttemptResultSuccess
	}

	fields := []zap.Field{
		zap.String("eventId", event.ID),
		zap.String("clientId", clientID),
		zap.String("eventType", event.EventType.String()),
		zap.String("result", result.String()),
		zap.Int64("durationMs", elapsed.Milliseconds()),
		zap.String("targetUrl", s.next.TargetURL()),
	}
	if outcome.HTTPStatus != nil {
		fields = append(fields, zap.Int("httpStatus", *outcome.HTTPStatus))
	}
	if key := domain.NormalizeCorrelationKey(correlationKey); key != nil {
		fields = append(fields, zap.String("idempotencyKey", *key))
	}
	if outcome.ErrorMessage != nil {
		fields = append(fields, zap.String("error", *outcome.ErrorMessage))
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	if outcome.Delivered {
		logger.Info("webhook delivery attempt", fields...)
	} else {
		logger.Warn("webhook delivery attempt", fields...)
	}

	return outcome
}
