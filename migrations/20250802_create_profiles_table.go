package migrations

import (
	"github.com/sabalioglu/vidgen/internal/models"

	"gorm.io/gorm"
)

// CreateProfilesTable створює таблицю profiles
func CreateProfilesTable(tx *gorm.DB) error {
	return tx.AutoMigrate(&models.Profile{})
}

// DropProfilesTable видаляє таблицю profiles
func DropProfilesTable(tx *gorm.DB) error {
	return tx.Migrator().DropTable(models.Profile{}.TableName())
}
