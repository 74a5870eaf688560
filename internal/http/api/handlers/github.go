package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/integrations/github"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"github.com/syncforge/syncforge/internal/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GitHubHandler handles connecting a GitHub account and browsing its
// repositories.
type GitHubHandler struct {
	db      *gorm.DB
	secrets secretstore.Store
	baseURL string
}

// NewGitHubHandler constructs a GitHubHandler. baseURL may be empty to use
// the public API endpoint.
func NewGitHubHandler(db *gorm.DB, secrets secretstore.Store, baseURL string) *GitHubHandler {
	return &GitHubHandler{db: db, secrets: secrets, baseURL: baseURL}
}

// connectGitHubRequest defines the request body for connecting GitHub.
type connectGitHubRequest struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// Connect validates a personal access token and stores it under a label.
// Reconnecting an existing (provider, label) pair replaces the token.
func (h *GitHubHandler) Connect(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body connectGitHubRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	label := defaultLabel(strings.TrimSpace(body.Label))

	client := github.NewClientWithBaseURL(token, h.baseURL)
	viewer, errViewer := client.Viewer(c.Request.Context())
	if errViewer != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token validation failed"})
		return
	}

	ref, errPut := h.secrets.Put(c.Request.Context(), userID, "github-"+label, token)
	if errPut != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store secret failed"})
		return
	}

	cfg, _ := json.Marshal(map[string]string{"login": viewer.Login})
	row, errFind := findIntegration(c.Request.Context(), h.db, userID, models.ProviderGitHub, label)
	switch {
	case errFind == nil:
		row.SecretRef = ref
		row.Config = datatypes.JSON(cfg)
		if errSave := h.db.WithContext(c.Request.Context()).Save(row).Error; errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update integration failed"})
			return
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = &models.Integration{
			UserID:    userID,
			Provider:  models.ProviderGitHub,
			Label:     label,
			Config:    datatypes.JSON(cfg),
			SecretRef: ref,
		}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(row).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create integration failed"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	markIntegrationTest(c.Request.Context(), h.db, row.ID, true, "OK")
	log.WithFields(log.Fields{
		"login": viewer.Login,
		"label": label,
		"token": util.MaskSecret(token),
	}).Info("github integration connected")

	c.JSON(http.StatusCreated, gin.H{
		"id":       row.ID,
		"provider": row.Provider,
		"label":    row.Label,
		"login":    viewer.Login,
	})
}

// Repos lists repositories visible to the stored token.
func (h *GitHubHandler) Repos(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	label := defaultLabel(strings.TrimSpace(c.Query("label")))

	client, integrationID, ok := h.clientFor(c, userID, label)
	if !ok {
		return
	}

	repos, errList := client.ListRepos(c.Request.Context())
	if errList != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errList.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errList.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

// Repo reads one repository and returns its attribute names in document
// order alongside the full document.
func (h *GitHubHandler) Repo(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	label := defaultLabel(strings.TrimSpace(c.Query("label")))
	fullName := c.Param("owner") + "/" + c.Param("repo")

	client, integrationID, ok := h.clientFor(c, userID, label)
	if !ok {
		return
	}

	doc, errGet := client.GetRepo(c.Request.Context(), fullName)
	if errGet != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errGet.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errGet.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusOK, gin.H{
		"repository": doc.Raw,
		"fields":     doc.Fields,
	})
}

// clientFor resolves the binding and token for a label and builds a client.
// On failure it writes the response and returns ok=false.
func (h *GitHubHandler) clientFor(c *gin.Context, userID uint64, label string) (*github.Client, uint64, bool) {
	row, errFind := findIntegration(c.Request.Context(), h.db, userID, models.ProviderGitHub, label)
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "github integration not configured"})
			return nil, 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, 0, false
	}

	token, errToken := h.secrets.Get(c.Request.Context(), userID, row.SecretRef)
	if errToken != nil {
		if errors.Is(errToken, secretstore.ErrSecretNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stored token not found"})
			return nil, 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read secret failed"})
		return nil, 0, false
	}

	return github.NewClientWithBaseURL(token, h.baseURL), row.ID, true
}
