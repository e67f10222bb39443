package migrations

import (
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createNotificationEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationEventModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notification_events_client_date ON notification_events (client_id, delivery_date)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationEventModel{})
		},
	}
}
