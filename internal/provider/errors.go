package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

const (
	nonSuccessMessage      = "Non-2xx response from webhook target"
	defaultFailureMessage  = "Webhook delivery failed"
	timeoutFailurePrefix   = "webhook request timed out"
	canceledFailurePrefix  = "webhook request canceled"
	transportFailurePrefix = "webhook request failed"
)

// transportErrorMessage renders a client error as a bounded, single-line message.
func transportErrorMessage(err error) string {
	if err == nil {
		return defaultFailureMessage
	}

	prefix := transportFailurePrefix
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		prefix = canceledFailurePrefix
	case errors.Is(err, context.DeadlineExceeded):
		prefix = timeoutFailurePrefix
	case errors.As(err, &netErr) && netErr.Timeout():
		prefix = timeoutFailurePrefix
	}

	detail := strings.Join(strings.Fields(err.Error()), " ")
	if detail == "" {
		return prefix
	}
	return domain.TruncateErrorMessage(fmt.Sprintf("%s: %s", prefix, detail))
}

func failureOutcome(message string, status *int, occurredAt time.Time) domain.DeliveryOutcome {
	msg := domain.TruncateErrorMessage(message)
	if msg == "" {
		msg = defaultFailureMessage
	}
	return domain.DeliveryOutcome{
		Delivered:    false,
		HTTPStatus:   status,
		ErrorMessage: &msg,
		OccurredAt:   occurredAt,
	}
}
