package models

import (
	"time"

	"gorm.io/datatypes"
)

// Mapping is a named, directional field correspondence between one
// repository and one ticketing table. (UserID, Repository, TableName, Label)
// is unique; re-creation under a new label is the supported change path.
type Mapping struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`                              // Primary key.
	UserID     uint64 `gorm:"not null;index;uniqueIndex:uq_mapping"`                 // Owning user.
	Repository string `gorm:"type:varchar(300);not null;uniqueIndex:uq_mapping"`     // owner/name repository identifier.
	TableName  string `gorm:"type:varchar(200);not null;uniqueIndex:uq_mapping"`     // Ticketing table name.
	Label      string `gorm:"type:varchar(100);not null;default:'default';uniqueIndex:uq_mapping"` // User-chosen discriminator.

	Direction    string         `gorm:"type:varchar(20);not null"` // repo_to_table | table_to_repo | bidirectional.
	FieldMapping datatypes.JSON `gorm:"type:jsonb"`                // table field -> repository field.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
