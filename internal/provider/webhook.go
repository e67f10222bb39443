package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultReadTimeout    = 5 * time.Second

	idempotencyKeyHeader = "Idempotency-Key"
)

// WebhookConfig describes the single tenant-facing webhook target.
type WebhookConfig struct {
	TargetURL      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

type webhookPayload struct {
	EventID      string    `json:"event_id"`
	ClientID     string    `json:"client_id"`
	EventType    string    `json:"event_type"`
	Content      string    `json:"content"`
	DeliveryDate time.Time `json:"delivery_date"`
}

// WebhookSender posts one event per call to an HTTPS endpoint. It never retries.
type WebhookSender struct {
	client    *resty.Client
	targetURL string
	now       func() time.Time
}

func NewWebhookSender(cfg WebhookConfig) (*WebhookSender, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	client := resty.New()
	client.SetTransport(transport)
	client.SetTimeout(connectTimeout + readTimeout)

	return NewWebhookSenderWithClient(cfg.TargetURL, client)
}

func NewWebhookSenderWithClient(targetURL string, client *resty.Client) (*WebhookSender, error) {
	trimmed := strings.TrimSpace(targetURL)
	if err := ValidateTargetURL(trimmed); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultConnectTimeout + DefaultReadTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSender{
		client:    client,
		targetURL: trimmed,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ValidateTargetURL accepts only absolute https URLs with a host.
func ValidateTargetURL(targetURL string) error {
	if strings.TrimSpace(targetURL) == "" {
		return fmt.Errorf("webhook target url is required")
	}
	parsed, err := url.ParseRequestURI(strings.TrimSpace(targetURL))
	if err != nil {
		return fmt.Errorf("invalid webhook target url: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("webhook target url must use https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("webhook target url must include a host")
	}
	return nil
}

func (s *WebhookSender) TargetURL() string {
	if s == nil {
		return ""
	}
	return s.targetURL
}

func (s *WebhookSender) Send(
	ctx context.Context,
	clientID string,
	event domain.NotificationEvent,
	correlationKey *string,
) domain.DeliveryOutcome {
	occurredAt := time.Now().UTC()
	if s != nil && s.now != nil {
		occurredAt = s.now()
	}
	if s == nil || s.client == nil {
		return failureOutcome("webhook sender is not initialized", nil, occurredAt)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(webhookPayload{
			EventID:      event.ID,
			ClientID:     clientID,
			EventType:    event.EventType.String(),
			Content:      event.Content,
			DeliveryDate: event.DeliveryDate.UTC(),
		})
	if key := domain.NormalizeCorrelationKey(correlationKey); key != nil {
		req.SetHeader(idempotencyKeyHeader, *key)
	}

	response, err := req.Post(s.targetURL)
	if err != nil {
		return failureOutcome(transportErrorMessage(err), nil, occurredAt)
	}
	if response == nil {
		return failureOutcome(defaultFailureMessage, nil, occurredAt)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return domain.DeliveryOutcome{
			Delivered:  true,
			HTTPStatus: &statusCode,
			OccurredAt: occurredAt,
		}
	}

	return failureOutcome(nonSuccessMessage, &statusCode, occurredAt)
}
