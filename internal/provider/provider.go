package provider

import (
	"context"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

// Sender is the outbound webhook delivery port. Delivery failures are reported
// in the returned outcome, never as errors.
type Sender interface {
	Send(ctx context.Context, clientID string, event domain.NotificationEvent, correlationKey *string) domain.DeliveryOutcome
	TargetURL() string
}
