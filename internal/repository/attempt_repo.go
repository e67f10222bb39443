package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the append-only delivery attempt ledger.
type AttemptRepository interface {
	Save(ctx context.Context, a *domain.DeliveryAttempt) error
	// FindAttemptedAt returns nil when no attempt matches the triple.
	FindAttemptedAt(ctx context.Context, clientID, eventID, correlationKey string) (*time.Time, error)
	ListByEvent(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Save(ctx context.Context, a *domain.DeliveryAttempt) error {
	if a == nil {
		return fmt.Errorf("%w: delivery attempt is required", domain.ErrValidation)
	}
	if err := a.Validate(); err != nil {
		return err
	}

	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*a = *attemptModelToDomain(model)
	return nil
}

func (r *GormAttemptRepo) FindAttemptedAt(
	ctx context.Context,
	clientID, eventID, correlationKey string,
) (*time.Time, error) {
	key := strings.TrimSpace(correlationKey)
	if key == "" {
		return nil, nil
	}

	var model DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND event_id = ? AND correlation_id = ?", clientID, eventID, key).
		Order("attempted_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	attemptedAt := model.AttemptedAt.UTC()
	return &attemptedAt, nil
}

func (r *GormAttemptRepo) ListByEvent(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND event_id = ?", clientID, eventID).
		Order("attempted_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
