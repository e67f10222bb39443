package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MaxCorrelationKeyLength = 200
	MaxErrorMessageLength   = 500
)

type AttemptType string

const AttemptTypeReplay AttemptType = "REPLAY"

type AttemptResult string

const (
	AttemptResultSuccess AttemptResult = "SUCCESS"
	AttemptResultFailure AttemptResult = "FAILURE"
)

func (r AttemptResult) String() string { return string(r) }

// DeliveryOutcome is what the webhook transmitter reports for one send.
type DeliveryOutcome struct {
	Delivered    bool
	HTTPStatus   *int
	ErrorMessage *string
	OccurredAt   time.Time
}

// DeliveryAttempt is an immutable audit record of one transmission try.
type DeliveryAttempt struct {
	ID             string
	EventID        string
	ClientID       string
	TargetURL      string
	AttemptType    AttemptType
	Result         AttemptResult
	HTTPStatus     *int
	ErrorMessage   *string
	AttemptedAt    time.Time
	DurationMs     int64
	CorrelationKey *string
}

func (a *DeliveryAttempt) Validate() error {
	if strings.TrimSpace(a.EventID) == "" {
		return fmt.Errorf("%w: attempt event id is required", ErrValidation)
	}
	if strings.TrimSpace(a.ClientID) == "" {
		return fmt.Errorf("%w: attempt client id is required", ErrValidation)
	}
	if strings.TrimSpace(a.TargetURL) == "" {
		return fmt.Errorf("%w: attempt target url is required", ErrValidation)
	}
	if a.Result != AttemptResultSuccess && a.Result != AttemptResultFailure {
		return fmt.Errorf("%w: invalid attempt result %q", ErrValidation, a.Result)
	}
	if a.DurationMs < 0 {
		return fmt.Errorf("%w: attempt duration must be >= 0", ErrValidation)
	}
	if a.AttemptedAt.IsZero() {
		return fmt.Errorf("%w: attempted at is required", ErrValidation)
	}
	return nil
}

// NewReplayAttempt folds a transmitter outcome into a ledger record.
func NewReplayAttempt(
	id string,
	event NotificationEvent,
	targetURL string,
	outcome DeliveryOutcome,
	duration time.Duration,
	correlationKey *string,
) *DeliveryAttempt {
	result := AttemptResultFailure
	if outcome.Delivered {
		result = AttemptResultSuccess
	}

	durationMs := duration.Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	return &DeliveryAttempt{
		ID:             id,
		EventID:        event.ID,
		ClientID:       event.ClientID,
		TargetURL:      targetURL,
		AttemptType:    AttemptTypeReplay,
		Result:         result,
		HTTPStatus:     outcome.HTTPStatus,
		ErrorMessage:   NormalizeErrorMessage(outcome.ErrorMessage),
		AttemptedAt:    outcome.OccurredAt,
		DurationMs:     durationMs,
		CorrelationKey: NormalizeCorrelationKey(correlationKey),
	}
}

// NormalizeCorrelationKey trims the key, treats blank as absent and caps its length.
// Keys are otherwise opaque and case-sensitive.
func NormalizeCorrelationKey(key *string) *string {
	return normalizeCapped(key, MaxCorrelationKeyLength)
}

func NormalizeErrorMessage(msg *string) *string {
	return normalizeCapped(msg, MaxErrorMessageLength)
}

func TruncateErrorMessage(msg string) string {
	return truncateRunes(strings.TrimSpace(msg), MaxErrorMessageLength)
}

func normalizeCapped(v *string, limit int) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	trimmed = truncateRunes(trimmed, limit)
	return &trimmed
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
