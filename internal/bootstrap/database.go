package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"paylink/internal/models"
)

// Migrate ensures every table the service uses exists with its indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

// AllModels lists the persisted entities in migration order.
func AllModels() []interface{} {
	return []interface{}{
		// Payment lifecycle
		&models.PaymentRecord{},
		&models.ActivityLogEntry{},
		&models.WebhookEvent{},
		// Bookings
		&models.Appointment{},
		&models.Slot{},
	}
}
