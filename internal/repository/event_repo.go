package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository is the read side of the notification event store.
// Lookups are always scoped by tenant.
type EventRepository interface {
	FindByTenantAndID(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error)
	FindByTenant(ctx context.Context, clientID string, filter domain.EventFilter) ([]domain.NotificationEvent, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) FindByTenantAndID(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error) {
	var model NotificationEventModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND event_id = ?", clientID, eventID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.EventNotFoundError(eventID)
	}
	if err != nil {
		return nil, err
	}
	return eventModelToDomain(&model), nil
}

func (r *GormEventRepo) FindByTenant(
	ctx context.Context,
	clientID string,
	filter domain.EventFilter,
) ([]domain.NotificationEvent, error) {
	query := r.db.WithContext(ctx).
		Model(&NotificationEventModel{}).
		Where("client_id = ?", clientID)

	if filter.DeliveryStatus != nil {
		query = query.Where("delivery_status = ?", *filter.DeliveryStatus)
	}
	if filter.From != nil {
		query = query.Where("delivery_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("delivery_date <= ?", *filter.To)
	}

	var models []NotificationEventModel
	if err := query.Order("delivery_date ASC, event_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]domain.NotificationEvent, 0, len(models))
	for i := range models {
		events = append(events, *eventModelToDomain(&models[i]))
	}
	return events, nil
}

// Save upserts an event keyed by (client_id, event_id).
func (r *GormEventRepo) Save(ctx context.Context, e *domain.NotificationEvent) error {
	if e == nil {
		return fmt.Errorf("%w: notification event is required", domain.ErrValidation)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"event_type", "content", "delivery_date", "delivery_status"}),
		}).
		Create(eventModelFromDomain(e)).Error
}
