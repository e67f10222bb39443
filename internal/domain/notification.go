package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the recorded delivery state of a notification event.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusCompleted DeliveryStatus = "COMPLETED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusCompleted, DeliveryStatusFailed:
		return true
	}
	return false
}

// ReplayAllowed reports whether an event in this status may be re-delivered.
func (s DeliveryStatus) ReplayAllowed() bool {
	return s == DeliveryStatusFailed
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// EventType is the business classification of an event. Values are the external wire form.
type EventType string

const (
	EventTypeCreditCardPayment     EventType = "credit_card_payment"
	EventTypeDebitCardWithdrawal   EventType = "debit_card_withdrawal"
	EventTypeCreditTransfer        EventType = "credit_transfer"
	EventTypeDebitAutomaticPayment EventType = "debit_automatic_payment"
	EventTypeCreditRefund          EventType = "credit_refund"
	EventTypeDebitTransfer         EventType = "debit_transfer"
	EventTypeCreditDeposit         EventType = "credit_deposit"
	EventTypeDebitPurchase         EventType = "debit_purchase"
	EventTypeCreditCashback        EventType = "credit_cashback"
	EventTypeDebitSubscription     EventType = "debit_subscription"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventTypeCreditCardPayment,
		EventTypeDebitCardWithdrawal,
		EventTypeCreditTransfer,
		EventTypeDebitAutomaticPayment,
		EventTypeCreditRefund,
		EventTypeDebitTransfer,
		EventTypeCreditDeposit,
		EventTypeDebitPurchase,
		EventTypeCreditCashback,
		EventTypeDebitSubscription:
		return true
	}
	return false
}

func ParseEventTypeFromString(s string) (EventType, error) {
	et := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !et.IsValid() {
		return "", fmt.Errorf("%w: invalid event type %q", ErrValidation, s)
	}
	return et, nil
}

// NotificationEvent is a previously recorded notification, identified by (ClientID, ID).
// Events are read-only for this service.
type NotificationEvent struct {
	ID             string
	ClientID       string
	EventType      EventType
	Content        string
	DeliveryDate   time.Time
	DeliveryStatus DeliveryStatus
}

func (e *NotificationEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if strings.TrimSpace(e.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if !e.EventType.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", ErrValidation, e.EventType)
	}
	if !e.DeliveryStatus.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", ErrValidation, e.DeliveryStatus)
	}
	if e.DeliveryDate.IsZero() {
		return fmt.Errorf("%w: delivery date is required", ErrValidation)
	}
	return nil
}

func (e *NotificationEvent) CanBeReplayed() bool {
	return e.DeliveryStatus.ReplayAllowed()
}

// EventFilter narrows a tenant's event listing. Both date bounds are inclusive.
type EventFilter struct {
	DeliveryStatus *DeliveryStatus
	From           *time.Time
	To             *time.Time
}

func (f EventFilter) Validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("%w: date_from must not be after date_to", ErrValidation)
	}
	return nil
}

func (f EventFilter) Matches(e NotificationEvent) bool {
	if f.DeliveryStatus != nil && e.DeliveryStatus != *f.DeliveryStatus {
		return false
	}
	if f.From != nil && e.DeliveryDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.DeliveryDate.After(*f.To) {
		return false
	}
	return true
}
