package repository

import (
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

// DeliveryAttemptModel is the persistence model for the delivery_attempts table.
type DeliveryAttemptModel struct {
	ID            string               `gorm:"type:uuid;primaryKey"`
	EventID       string               `gorm:"type:varchar(100);not null"`
	ClientID      string               `gorm:"type:varchar(100);not null"`
	TargetURL     string               `gorm:"type:varchar(2048);not null"`
	AttemptType   domain.AttemptType   `gorm:"type:varchar(20);not null"`
	Result        domain.AttemptResult `gorm:"type:varchar(20);not null"`
	HTTPStatus    *int                 `gorm:"type:int"`
	ErrorMessage  *string              `gorm:"type:varchar(500)"`
	AttemptedAt   time.Time            `gorm:"type:timestamptz;not null"`
	DurationMs    int64                `gorm:"not null"`
	CorrelationID *string              `gorm:"type:varchar(200)"`
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// DeliveryAttemptIndexes are created after the delivery_attempts table.
// The correlation index is partial so unkeyed attempts never collide.
var DeliveryAttemptIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_event_client ON delivery_attempts (event_id, client_id, attempted_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_attempts_correlation ON delivery_attempts (client_id, event_id, correlation_id) WHERE correlation_id IS NOT NULL`,
}

// NotificationEventModel is the persistence model for notification_events.
type NotificationEventModel struct {
	EventID        string                `gorm:"type:varchar(100);primaryKey"`
	ClientID       string                `gorm:"type:varchar(100);primaryKey"`
	EventType      domain.EventType      `gorm:"type:varchar(50);not null"`
	Content        string                `gorm:"type:text;not null"`
	DeliveryDate   time.Time             `gorm:"type:timestamptz;not null"`
	DeliveryStatus domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
}

func (NotificationEventModel) TableName() string {
	return "notification_events"
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		EventID:       a.EventID,
		ClientID:      a.ClientID,
		TargetURL:     a.TargetURL,
		AttemptType:   a.AttemptType,
		Result:        a.Result,
		HTTPStatus:    a.HTTPStatus,
		ErrorMessage:  a.ErrorMessage,
		AttemptedAt:   a.AttemptedAt.UTC(),
		DurationMs:    a.DurationMs,
		CorrelationID: a.CorrelationKey,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		EventID:        m.EventID,
		ClientID:       m.ClientID,
		TargetURL:      m.TargetURL,
		AttemptType:    m.AttemptType,
		Result:         m.Result,
		HTTPStatus:     m.HTTPStatus,
		ErrorMessage:   m.ErrorMessage,
		AttemptedAt:    m.AttemptedAt.UTC(),
		DurationMs:     m.DurationMs,
		CorrelationKey: m.CorrelationID,
	}
}

func eventModelFromDomain(e *domain.NotificationEvent) *NotificationEventModel {
	if e == nil {
		return nil
	}

	return &NotificationEventModel{
		EventID:        e.ID,
		ClientID:       e.ClientID,
		EventType:      e.EventType,
		Content:        e.Content,
		DeliveryDate:   e.DeliveryDate.UTC(),
		DeliveryStatus: e.DeliveryStatus,
	}
}

func eventModelToDomain(m *NotificationEventModel) *domain.NotificationEvent {
	if m == nil {
		return nil
	}

	return &domain.NotificationEvent{
		ID:             m.EventID,
		ClientID:       m.ClientID,
		EventType:      m.EventType,
		Content:        m.Content,
		DeliveryDate:   m.DeliveryDate.UTC(),
		DeliveryStatus: m.DeliveryStatus,
	}
}
