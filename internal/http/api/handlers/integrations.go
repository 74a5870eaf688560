package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"gorm.io/gorm"
)

// IntegrationsHandler handles listing and removal of credential bindings.
// Connecting a provider lives with that provider's handler.
type IntegrationsHandler struct {
	db      *gorm.DB
	secrets secretstore.Store
}

// NewIntegrationsHandler constructs an IntegrationsHandler.
func NewIntegrationsHandler(db *gorm.DB, secrets secretstore.Store) *IntegrationsHandler {
	return &IntegrationsHandler{db: db, secrets: secrets}
}

// List returns the user's credential bindings. Secrets never appear; only
// the provider, label, non-secret config and last test status are exposed.
func (h *IntegrationsHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Integration
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("provider, label").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{
			"id":                row.ID,
			"provider":          row.Provider,
			"label":             row.Label,
			"config":            row.Config,
			"last_tested_at":    row.LastTestedAt,
			"last_test_ok":      row.LastTestOK,
			"last_test_message": row.LastTestMessage,
			"created_at":        row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"integrations": items})
}

// Delete removes a binding and, best-effort, its stored secret.
func (h *IntegrationsHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var row models.Integration
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "integration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&row).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete integration failed"})
		return
	}

	if row.SecretRef != "" {
		if errSecret := h.secrets.Delete(c.Request.Context(), userID, row.SecretRef); errSecret != nil {
			log.WithError(errSecret).
				WithField("provider", row.Provider).
				Warn("delete stored secret failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
