package models

import (
	"time"

	"gorm.io/datatypes"
)

// Provider identifiers for credential bindings.
const (
	// ProviderGitHub names the repository-hosting provider.
	ProviderGitHub = "github"
	// ProviderServiceNow names the ticketing provider.
	ProviderServiceNow = "servicenow"
)

// Integration is a per-user credential binding for one provider under a
// free-text label. The secret itself lives in the secret store; only the
// opaque reference and non-secret configuration are kept here.
type Integration struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`                                          // Primary key.
	UserID   uint64 `gorm:"not null;index;uniqueIndex:uq_integration"`                         // Owning user.
	Provider string `gorm:"type:varchar(50);not null;uniqueIndex:uq_integration"`              // github | servicenow.
	Label    string `gorm:"type:varchar(100);not null;default:'default';uniqueIndex:uq_integration"` // User-chosen discriminator.

	Config    datatypes.JSON `gorm:"type:jsonb"`       // Non-secret provider configuration.
	SecretRef string         `gorm:"type:varchar(512)"` // Opaque secret store reference.

	LastTestedAt    *time.Time `` // Last connectivity test time.
	LastTestOK      *bool      `` // Last connectivity test outcome.
	LastTestMessage string     `gorm:"type:text"` // Last test detail, truncated to 500 chars.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
