package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

const noopTargetURL = "noop://webhook"

// NoopSender reports every delivery as successful without any network I/O.
type NoopSender struct {
	targetURL string
	now       func() time.Time
}

func NewNoopSender(targetURL string) *NoopSender {
	target := strings.TrimSpace(targetURL)
	if target == "" {
		target = noopTargetURL
	}
	return &NoopSender{
		targetURL: target,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *NoopSender) TargetURL() string { return s.targetURL }

func (s *NoopSender) Send(context.Context, string, domain.NotificationEvent, *string) domain.DeliveryOutcome {
	status := http.StatusOK
	return domain.DeliveryOutcome{
		Delivered:  true,
		HTTPStatus: &status,
		OccurredAt: s.now(),
	}
}
