package models

import "time"

// Secret is an encrypted credential payload for the local secret store
// backend. The AWS backend never writes rows here.
type Secret struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`                   // Primary key.
	UserID uint64 `gorm:"not null;index;uniqueIndex:uq_secret_name"`  // Owning user.
	Name   string `gorm:"type:varchar(200);not null;uniqueIndex:uq_secret_name"` // Logical secret name.

	Ref        string `gorm:"type:varchar(64);not null;uniqueIndex"` // Opaque reference handed to callers.
	Ciphertext string `gorm:"type:text;not null"`                    // AES-GCM sealed payload, base64.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
