package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/integrations/servicenow"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceNowHandler handles connecting a ServiceNow instance and browsing
// and writing its tables.
type ServiceNowHandler struct {
	db      *gorm.DB
	secrets secretstore.Store
}

// NewServiceNowHandler constructs a ServiceNowHandler.
func NewServiceNowHandler(db *gorm.DB, secrets secretstore.Store) *ServiceNowHandler {
	return &ServiceNowHandler{db: db, secrets: secrets}
}

// snConfig is the non-secret part of a ServiceNow binding, stored on the
// integration row.
type snConfig struct {
	InstanceURL string `json:"instance_url"`
	Username    string `json:"username"`
}

// connectServiceNowRequest defines the request body for connecting
// ServiceNow.
type connectServiceNowRequest struct {
	InstanceURL string `json:"instance_url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Label       string `json:"label"`
}

// Connect validates instance credentials and stores them under a label.
// Only the password goes to the secret store; instance URL and username are
// kept as binding configuration.
func (h *ServiceNowHandler) Connect(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body connectServiceNowRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	instanceURL := strings.TrimSpace(body.InstanceURL)
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if instanceURL == "" || username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing instance_url, username or password"})
		return
	}
	label := defaultLabel(strings.TrimSpace(body.Label))

	client := servicenow.NewClient(instanceURL, username, password)
	if errValidate := client.Validate(c.Request.Context()); errValidate != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "credential validation failed"})
		return
	}

	ref, errPut := h.secrets.Put(c.Request.Context(), userID, "servicenow-"+label, password)
	if errPut != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store secret failed"})
		return
	}

	cfg, _ := json.Marshal(snConfig{InstanceURL: instanceURL, Username: username})
	row, errFind := findIntegration(c.Request.Context(), h.db, userID, models.ProviderServiceNow, label)
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
			Provider:  models.ProviderServiceNow,
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

	c.JSON(http.StatusCreated, gin.H{
		"id":           row.ID,
		"provider":     row.Provider,
		"label":        row.Label,
		"instance_url": instanceURL,
	})
}

// Tables lists entries of the instance's table catalog.
func (h *ServiceNowHandler) Tables(c *gin.Context) {
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

	limit, _ := strconv.Atoi(c.Query("limit"))
	tables, errList := client.ListTables(c.Request.Context(), limit, c.Query("q"))
	if errList != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errList.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errList.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// Fields lists the column dictionary of one table.
func (h *ServiceNowHandler) Fields(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	label := defaultLabel(strings.TrimSpace(c.Query("label")))
	table := c.Param("table")

	client, integrationID, ok := h.clientFor(c, userID, label)
	if !ok {
		return
	}

	fields, errList := client.ListFields(c.Request.Context(), table)
	if errList != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errList.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errList.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusOK, gin.H{"table": table, "fields": fields})
}

// CreateRecord inserts a record into a table.
func (h *ServiceNowHandler) CreateRecord(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	label := defaultLabel(strings.TrimSpace(c.Query("label")))
	table := c.Param("table")

	var payload map[string]any
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}

	client, integrationID, ok := h.clientFor(c, userID, label)
	if !ok {
		return
	}

	record, errCreate := client.CreateRecord(c.Request.Context(), table, payload)
	if errCreate != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errCreate.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusCreated, gin.H{"record": record})
}

// UpdateRecord patches an existing record by sys_id.
func (h *ServiceNowHandler) UpdateRecord(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	label := defaultLabel(strings.TrimSpace(c.Query("label")))
	table := c.Param("table")
	sysID := c.Param("sys_id")

	var payload map[string]any
	if errBind := c.ShouldBindJSON(&payload); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}

	client, integrationID, ok := h.clientFor(c, userID, label)
	if !ok {
		return
	}

	record, errUpdate := client.UpdateRecord(c.Request.Context(), table, sysID, payload)
	if errUpdate != nil {
		markIntegrationTest(c.Request.Context(), h.db, integrationID, false, errUpdate.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": errUpdate.Error()})
		return
	}
	markIntegrationTest(c.Request.Context(), h.db, integrationID, true, "OK")

	c.JSON(http.StatusOK, gin.H{"record": record})
}

// clientFor resolves the binding, its password and configuration for a
// label and builds a client. On failure it writes the response and returns
// ok=false.
func (h *ServiceNowHandler) clientFor(c *gin.Context, userID uint64, label string) (*servicenow.Client, uint64, bool) {
	row, errFind := findIntegration(c.Request.Context(), h.db, userID, models.ProviderServiceNow, label)
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "servicenow integration not configured"})
			return nil, 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, 0, false
	}

	var cfg snConfig
	if errDecode := json.Unmarshal(row.Config, &cfg); errDecode != nil ||
		strings.TrimSpace(cfg.InstanceURL) == "" || strings.TrimSpace(cfg.Username) == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "integration configuration incomplete"})
		return nil, 0, false
	}

	password, errPassword := h.secrets.Get(c.Request.Context(), userID, row.SecretRef)
	if errPassword != nil {
		if errors.Is(errPassword, secretstore.ErrSecretNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "stored password not found"})
			return nil, 0, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read secret failed"})
		return nil, 0, false
	}

	return servicenow.NewClient(cfg.InstanceURL, cfg.Username, password), row.ID, true
}
