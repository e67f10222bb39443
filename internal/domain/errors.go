package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrReplayNotAllowed = errors.New("replay not allowed")
	ErrReplayInProgress = errors.New("replay already in progress")
)

// ReplayNotAllowedError reports an event that exists but cannot be replayed.
// Reason is set when the status alone does not explain the rejection.
type ReplayNotAllowedError struct {
	EventID string
	Status  DeliveryStatus
	Reason  string
}

func (e *ReplayNotAllowedError) Error() string {
	if e == nil {
		return ErrReplayNotAllowed.Error()
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: notification event %q: %s", ErrReplayNotAllowed, e.EventID, e.Reason)
	}
	return fmt.Sprintf("%s: notification event %q has delivery status %s", ErrReplayNotAllowed, e.EventID, e.Status)
}

func (e *ReplayNotAllowedError) Unwrap() error {
	return ErrReplayNotAllowed
}

// EventNotFoundError hides whether the event is missing or owned by another tenant.
func EventNotFoundError(eventID string) error {
	return fmt.Errorf("%w: notification event %q", ErrNotFound, eventID)
}
