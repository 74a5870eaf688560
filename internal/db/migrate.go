package db

import (
	"fmt"

	"github.com/syncforge/syncforge/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Integration{},
		&models.Secret{},
		&models.UserSetting{},
		&models.Mapping{},
	)
}
