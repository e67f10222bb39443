package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/provider"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/subscription"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReplayGuard serializes concurrent replays that share an idempotency key.
type ReplayGuard interface {
	Reserve(ctx context.Context, clientID, eventID, key string) (token string, ok bool, err error)
	Release(ctx context.Context, clientID, eventID, key, token string) error
}

// Replayer is the inbound replay operation.
type Replayer interface {
	Replay(ctx context.Context, clientID, eventID string, idempotencyKey *string) (*ReplayResult, error)
}

type ReplayResult struct {
	EventID     string
	Accepted    bool
	ProcessedAt time.Time
	// Deduplicated is true when the result came from an earlier attempt with the same key.
	Deduplicated bool
}

type ReplayService struct {
	events        repository.EventRepository
	attempts      repository.AttemptRepository
	sender        provider.Sender
	subscriptions subscription.Checker
	guard         ReplayGuard
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

// NewReplayService wires the replay coordinator. subscriptions and guard may be nil.
func NewReplayService(
	events repository.EventRepository,
	attempts repository.AttemptRepository,
	sender provider.Sender,
	subscriptions subscription.Checker,
	guard ReplayGuard,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ReplayService, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("webhook sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReplayService{
		events:        events,
		attempts:      attempts,
		sender:        sender,
		subscriptions: subscriptions,
		guard:         guard,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}, nil
}

func (s *ReplayService) Replay(
	ctx context.Context,
	clientID, eventID string,
	idempotencyKey *string,
) (*ReplayResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	clientID = strings.TrimSpace(clientID)
	eventID = strings.TrimSpace(eventID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}

	event, err := s.events.FindByTenantAndID(ctx, clientID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.EventNotFoundError(eventID)
	}
	if !event.CanBeReplayed() {
		return nil, &domain.ReplayNotAllowedError{EventID: event.ID, Status: event.DeliveryStatus}
	}
	if s.subscriptions != nil && !s.subscriptions.IsSubscribed(ctx, clientID, event.EventType) {
		return nil, &domain.ReplayNotAllowedError{
			EventID: event.ID,
			Status:  event.DeliveryStatus,
			Reason:  fmt.Sprintf("client is not subscribed to %s", event.EventType),
		}
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("eventId", event.ID),
		zap.String("clientId", clientID),
	)

	// From here on the replay runs to completion even if the caller goes away.
	runCtx := context.WithoutCancel(ctx)

	key := domain.NormalizeCorrelationKey(idempotencyKey)
	if key != nil {
		attemptedAt, err := s.attempts.FindAttemptedAt(runCtx, clientID, event.ID, *key)
		if err != nil {
			return nil, fmt.Errorf("failed to look up previous replay attempt: %w", err)
		}
		if attemptedAt != nil {
			s.metrics.IncIdempotentReplay()
			logger.Info("replay answered from attempt ledger",
				zap.String("idempotencyKey", *key),
				zap.Time("attemptedAt", *attemptedAt),
			)
			return deduplicatedResult(event.ID, *attemptedAt), nil
		}

		release, reserved, err := s.reserve(runCtx, logger, clientID, event.ID, *key)
		if err != nil {
			return nil, err
		}
		defer release()

		// A holder that finished between the lookup and the reservation has
		// already written its attempt.
		if reserved {
			attemptedAt, err := s.attempts.FindAttemptedAt(runCtx, clientID, event.ID, *key)
			if err != nil {
				return nil, fmt.Errorf("failed to look up previous replay attempt: %w", err)
			}
			if attemptedAt != nil {
				s.metrics.IncIdempotentReplay()
				logger.Info("replay answered from attempt ledger after reservation",
					zap.String("idempotencyKey", *key),
					zap.Time("attemptedAt", *attemptedAt),
				)
				return deduplicatedResult(event.ID, *attemptedAt), nil
			}
		}
	}

	effectiveKey := key
	if effectiveKey == nil {
		generated := s.newID()
		effectiveKey = &generated
	}

	start := s.now()
	outcome := s.sender.Send(runCtx, clientID, *event, effectiveKey)
	if outcome.OccurredAt.IsZero() {
		outcome.OccurredAt = start
	}
	duration := s.now().Sub(outcome.OccurredAt)

	attempt := domain.NewReplayAttempt(s.newID(), *event, s.sender.TargetURL(), outcome, duration, effectiveKey)
	if err := s.attempts.Save(runCtx, attempt); err != nil {
		if key != nil {
			existing, resolved, resolveErr := s.resolveLedgerConflict(runCtx, logger, err, clientID, event.ID, *key)
			if resolveErr != nil {
				return nil, resolveErr
			}
			if resolved {
				return deduplicatedResult(event.ID, existing), nil
			}
		}
		logger.Error("failed to record delivery attempt", zap.Error(err))
		return nil, fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	logger.Info("replay processed",
		zap.String("attemptId", attempt.ID),
		zap.String("result", attempt.Result.String()),
		zap.Int64("durationMs", attempt.DurationMs),
	)

	return &ReplayResult{
		EventID:     event.ID,
		Accepted:    true,
		ProcessedAt: s.now(),
	}, nil
}

// reserve claims the idempotency key for the duration of one transmission.
// reserved is false when no guard is configured or the guard is unavailable;
// the ledger unique index is then the only dedup.
func (s *ReplayService) reserve(
	ctx context.Context,
	logger *zap.Logger,
	clientID, eventID, key string,
) (release func(), reserved bool, err error) {
	noop := func() {}
	if s.guard == nil {
		return noop, false, nil
	}

	token, ok, err := s.guard.Reserve(ctx, clientID, eventID, key)
	if err != nil {
		logger.Warn("replay guard unavailable, continuing without reservation", zap.Error(err))
		return noop, false, nil
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: notification event %q", domain.ErrReplayInProgress, eventID)
	}

	return func() {
		if err := s.guard.Release(ctx, clientID, eventID, key, token); err != nil {
			logger.Warn("failed to release replay reservation", zap.Error(err))
		}
	}, true, nil
}

// resolveLedgerConflict turns a unique violation on the ledger into the attempt
// that won the race.
func (s *ReplayService) resolveLedgerConflict(
	ctx context.Context,
	logger *zap.Logger,
	saveErr error,
	clientID, eventID, key string,
) (time.Time, bool, error) {
	if !isUniqueViolationError(saveErr) {
		return time.Time{}, false, nil
	}

	attemptedAt, err := s.attempts.FindAttemptedAt(ctx, clientID, eventID, key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load existing attempt after ledger conflict: %w", err)
	}
	if attemptedAt == nil {
		return time.Time{}, false, fmt.Errorf("%w: ledger conflict for notification event %q but no attempt found", domain.ErrConflict, eventID)
	}

	s.metrics.IncLedgerConflictResolved()
	logger.Info("attempt ledger conflict resolved",
		zap.String("idempotencyKey", key),
		zap.Time("attemptedAt", *attemptedAt),
	)
	return *attemptedAt, true, nil
}

func deduplicatedResult(eventID string, attemptedAt time.Time) *ReplayResult {
	return &ReplayResult{
		EventID:      eventID,
		Accepted:     true,
		ProcessedAt:  attemptedAt,
		Deduplicated: true,
	}
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
