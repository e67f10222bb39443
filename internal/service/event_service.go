package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"go.uber.org/zap"
)

// EventService serves the tenant-scoped read side: event listing, lookup and attempt history.
type EventService struct {
	events   repository.EventRepository
	attempts repository.AttemptRepository
	logger   *zap.Logger
}

func NewEventService(
	events repository.EventRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*EventService, error) {
	if events == nil {
		return nil, fmt.Errorf("event repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventService{
		events:   events,
		attempts: attempts,
		logger:   logger,
	}, nil
}

func (s *EventService) Query(
	ctx context.Context,
	clientID string,
	filter domain.EventFilter,
) ([]domain.NotificationEvent, error) {
	clientID, err := requireClientID(clientID)
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	events, err := s.events.FindByTenant(ctx, clientID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification events: %w", err)
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error) {
	clientID, err := requireClientID(clientID)
	if err != nil {
		return nil, err
	}

	eventID = strings.TrimSpace(eventID)
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
	return event, nil
}

// ListAttempts returns the event's delivery attempts, newest first.
// The event must be visible to the tenant.
func (s *EventService) ListAttempts(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error) {
	event, err := s.Get(ctx, clientID, eventID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByEvent(ctx, event.ClientID, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	return attempts, nil
}

func requireClientID(clientID string) (string, error) {
	trimmed := strings.TrimSpace(clientID)
	if trimmed == "" {
		return "", fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	return trimmed, nil
}
