package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/internal/models"
)

func TestAutoMigrateCreatesPartyTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
		&models.PartyPost{},
		&models.PartySlot{},
		&models.PartyApplication{},
		&models.OutboxEvent{},
		&models.Notification{},
		&models.AuditLog{},
		&models.CacheEntry{},
	}
	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
}

func TestLiveKeyIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasIndex(&models.PartyApplication{}, "LiveKey"))

	key := "post:user"
	first := models.PartyApplication{PostID: "p", SlotID: "s", ApplicantID: "u", CharacterName: "a", CharacterClass: "b", Status: "pending", LiveKey: &key}
	require.NoError(t, db.Create(&first).Error)

	second := first
	second.ID = ""
	require.Error(t, db.Create(&second).Error)

	// Cleared keys never collide.
	first.ID, second.ID = "", ""
	first.LiveKey, second.LiveKey = nil, nil
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)
}
