package models

import "time"

// User is a registered account owning integrations and mappings.
type User struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`               // Primary key.
	Email    string `gorm:"type:varchar(320);not null;uniqueIndex"` // Login email.
	Password string `gorm:"type:varchar(255);not null"`             // Bcrypt hash.
	Disabled bool   `gorm:"not null;default:false"`                 // Blocks login when set.

	Integrations []Integration `gorm:"foreignKey:UserID"` // Connected providers.
	Mappings     []Mapping     `gorm:"foreignKey:UserID"` // Owned mappings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
