package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/util"
	"gorm.io/gorm"
)

// maxThemeLength bounds the stored theme name; longer values are cut, not
// rejected.
const maxThemeLength = 30

// SettingsHandler handles per-user preference endpoints.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the user's settings, creating the default row on first read.
func (h *SettingsHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var setting models.UserSetting
	errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&setting).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		setting = models.UserSetting{UserID: userID, Theme: "dark", Notifications: true}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&setting).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create settings failed"})
			return
		}
	} else if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"theme":         setting.Theme,
		"notifications": setting.Notifications,
	})
}

// updateSettingsRequest defines the request body for settings updates. Both
// fields are optional; absent fields keep their current value.
type updateSettingsRequest struct {
	Theme         *string `json:"theme"`
	Notifications *bool   `json:"notifications"`
}

// Update modifies the user's settings.
func (h *SettingsHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var setting models.UserSetting
	errFind := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&setting).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		setting = models.UserSetting{UserID: userID, Theme: "dark", Notifications: true}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&setting).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create settings failed"})
			return
		}
	} else if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Theme != nil {
		theme := strings.TrimSpace(*body.Theme)
		if theme == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be non-empty"})
			return
		}
		updates["theme"] = util.Truncate(theme, maxThemeLength)
	}
	if body.Notifications != nil {
		updates["notifications"] = *body.Notifications
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&setting).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update settings failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
