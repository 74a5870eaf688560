package models

import "time"

// UserSetting stores per-user UI preferences. One row per user, created
// lazily on first read.
type UserSetting struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;uniqueIndex"`     // Owning user.

	Theme         string `gorm:"type:varchar(30);not null;default:'dark'"` // UI theme name.
	Notifications bool   `gorm:"not null;default:true"`                    // Notification opt-in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
