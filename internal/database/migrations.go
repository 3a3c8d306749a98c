package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/partyfinder/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PartyPost{},
		&models.PartySlot{},
		&models.PartyApplication{},
		&models.OutboxEvent{},
		&models.Notification{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}
