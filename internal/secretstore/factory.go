package secretstore

import (
	"context"
	"fmt"

	"github.com/syncforge/syncforge/internal/config"
	"gorm.io/gorm"
)

// New selects the secret store backend from configuration.
func New(ctx context.Context, cfg config.SecretStoreConfig, db *gorm.DB) (Store, error) {
	switch cfg.Backend {
	case "", config.SecretStoreLocal:
		return NewLocalStore(db, cfg.EncryptionKey)
	case config.SecretStoreAWS:
		return NewAWSStore(ctx, cfg.AWSRegion, cfg.AWSPrefix)
	default:
		return nil, fmt.Errorf("secretstore: unknown backend %q", cfg.Backend)
	}
}
