package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNormalizeCorrelationKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input *string
		want  *string
	}{
		{name: "nil stays absent", input: nil, want: nil},
		{name: "blank becomes absent", input: strPtr("   "), want: nil},
		{name: "trimmed", input: strPtr("  retry-1 "), want: strPtr("retry-1")},
		{name: "case preserved", input: strPtr("Retry-ABC"), want: strPtr("Retry-ABC")},
		{name: "capped", input: strPtr(strings.Repeat("k", 250)), want: strPtr(strings.Repeat("k", MaxCorrelationKeyLength))},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NormalizeCorrelationKey(tt.input)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("NormalizeCorrelationKey() = %q, want nil", *got)
			case tt.want != nil && got == nil:
				t.Fatalf("NormalizeCorrelationKey() = nil, want %q", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Fatalf("NormalizeCorrelationKey() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestNewReplayAttempt(t *testing.T) {
	t.Parallel()

	occurredAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	status := 503
	event := NotificationEvent{ID: "EVT001", ClientID: "CLIENT001"}

	attempt := NewReplayAttempt(
		"attempt-1",
		event,
		"https://example.com/hook",
		DeliveryOutcome{
			Delivered:    false,
			HTTPStatus:   &status,
			ErrorMessage: strPtr(strings.Repeat("e", 600)),
			OccurredAt:   occurredAt,
		},
		-5*time.Millisecond,
		strPtr(" retry-1 "),
	)

	if attempt.Result != AttemptResultFailure {
		t.Fatalf("Result = %s, want FAILURE", attempt.Result)
	}
	if attempt.AttemptType != AttemptTypeReplay {
		t.Fatalf("AttemptType = %s, want REPLAY", attempt.AttemptType)
	}
	if attempt.DurationMs != 0 {
		t.Fatalf("DurationMs = %d, want 0", attempt.DurationMs)
	}
	if attempt.ErrorMessage == nil || len(*attempt.ErrorMessage) != MaxErrorMessageLength {
		t.Fatalf("ErrorMessage length = %v, want %d", attempt.ErrorMessage, MaxErrorMessageLength)
	}
	if attempt.CorrelationKey == nil || *attempt.CorrelationKey != "retry-1" {
		t.Fatalf("CorrelationKey = %v, want retry-1", attempt.CorrelationKey)
	}
	if !attempt.AttemptedAt.Equal(occurredAt) {
		t.Fatalf("AttemptedAt = %v, want %v", attempt.AttemptedAt, occurredAt)
	}
	if err := attempt.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
}

func TestNewReplayAttemptDiscardsBlankErrorMessage(t *testing.T) {
	t.Parallel()

	attempt := NewReplayAttempt(
		"attempt-2",
		NotificationEvent{ID: "EVT001", ClientID: "CLIENT001"},
		"https://example.com/hook",
		DeliveryOutcome{Delivered: true, ErrorMessage: strPtr("  "), OccurredAt: time.Now()},
		1500*time.Millisecond,
		nil,
	)

	if attempt.Result != AttemptResultSuccess {
		t.Fatalf("Result = %s, want SUCCESS", attempt.Result)
	}
	if attempt.ErrorMessage != nil {
		t.Fatalf("ErrorMessage = %q, want nil", *attempt.ErrorMessage)
	}
	if attempt.DurationMs != 1500 {
		t.Fatalf("DurationMs = %d, want 1500", attempt.DurationMs)
	}
}

func TestDeliveryAttemptValidate(t *testing.T) {
	t.Parallel()

	attempt := DeliveryAttempt{
		EventID:     "EVT001",
		ClientID:    "CLIENT001",
		TargetURL:   "https://example.com/hook",
		AttemptType: AttemptTypeReplay,
		Result:      AttemptResultSuccess,
		AttemptedAt: time.Now(),
		DurationMs:  -1,
	}
	if err := attempt.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
