package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/mapping"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"github.com/syncforge/syncforge/internal/util"
	"gorm.io/gorm"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// respondMappingError translates reconciliation errors to HTTP statuses.
func respondMappingError(c *gin.Context, err error) {
	var validationErr *mapping.ValidationError
	var fetchErr *mapping.RemoteFetchError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "violations": validationErr.Violations})
	case errors.Is(err, mapping.ErrInvalidDirection),
		errors.Is(err, mapping.ErrInvalidRepositoryIdentifier):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": fetchErr.Error(), "provider": fetchErr.Provider})
	case errors.Is(err, mapping.ErrMappingExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, mapping.ErrCredentialNotConfigured),
		errors.Is(err, secretstore.ErrSecretNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, mapping.ErrCredentialIncomplete):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// findIntegration loads one credential binding by provider and label.
func findIntegration(ctx context.Context, db *gorm.DB, userID uint64, provider, label string) (*models.Integration, error) {
	var row models.Integration
	errFind := db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND label = ?", userID, provider, label).
		First(&row).Error
	if errFind != nil {
		return nil, errFind
	}
	return &row, nil
}

// markIntegrationTest records a connectivity test outcome on a binding.
// Best-effort: failures are logged, never surfaced.
func markIntegrationTest(ctx context.Context, db *gorm.DB, integrationID uint64, ok bool, message string) {
	if errUpdate := db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", integrationID).
		Updates(map[string]any{
			"last_tested_at":    time.Now().UTC(),
			"last_test_ok":      ok,
			"last_test_message": util.Truncate(message, 500),
		}).Error; errUpdate != nil {
		log.WithError(errUpdate).Warn("record integration test result failed")
	}
}

// defaultLabel normalizes an optional label parameter.
func defaultLabel(label string) string {
	if label == "" {
		return "default"
	}
	return label
}
