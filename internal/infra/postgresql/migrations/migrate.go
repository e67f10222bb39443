package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, List())
	return m.Migrate()
}

// List returns every migration in apply order.
func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createDeliveryAttemptsTable(),
		createNotificationEventsTable(),
	}
}
