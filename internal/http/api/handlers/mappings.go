package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/mapping"
)

// MappingsHandler exposes the mapping reconciliation service.
type MappingsHandler struct {
	svc *mapping.Service
}

// NewMappingsHandler constructs a MappingsHandler.
func NewMappingsHandler(svc *mapping.Service) *MappingsHandler {
	return &MappingsHandler{svc: svc}
}

// mappingRequest is the shared request body for create and validate. Label
// defaults to "default" and direction to "bidirectional" when omitted.
type mappingRequest struct {
	Repository   string            `json:"repository"`
	Table        string            `json:"table"`
	Label        string            `json:"label"`
	Direction    string            `json:"direction"`
	FieldMapping map[string]string `json:"field_mapping"`
}

// defaults fills the optional fields.
func (r *mappingRequest) defaults() {
	if r.Label == "" {
		r.Label = "default"
	}
	if r.Direction == "" {
		r.Direction = string(mapping.DirectionBidirectional)
	}
}

// Create persists a new mapping after structural validation.
func (h *MappingsHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body mappingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	body.defaults()

	record, errCreate := h.svc.CreateMapping(c.Request.Context(), mapping.CreateMappingInput{
		UserID:       userID,
		Repository:   body.Repository,
		Table:        body.Table,
		Label:        body.Label,
		Direction:    body.Direction,
		FieldMapping: body.FieldMapping,
	})
	if errCreate != nil {
		respondMappingError(c, errCreate)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// List returns the user's mappings, most recent first.
func (h *MappingsHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	records, errList := h.svc.ListMappings(c.Request.Context(), userID)
	if errList != nil {
		respondMappingError(c, errList)
		return
	}

	c.JSON(http.StatusOK, gin.H{"mappings": records})
}

// Validate checks a proposed mapping against the live remote schemas.
func (h *MappingsHandler) Validate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body mappingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	body.defaults()

	result, errValidate := h.svc.ValidateMapping(c.Request.Context(), mapping.ValidateInput{
		UserID:       userID,
		Repository:   body.Repository,
		Table:        body.Table,
		Label:        body.Label,
		Direction:    body.Direction,
		FieldMapping: body.FieldMapping,
	})
	if errValidate != nil {
		respondMappingError(c, errValidate)
		return
	}

	c.JSON(http.StatusOK, result)
}

// autoMapRequest defines the request body for auto-mapping.
type autoMapRequest struct {
	Repository string `json:"repository"`
	Table      string `json:"table"`
	Label      string `json:"label"`
	Direction  string `json:"direction"`
}

// Auto proposes a mapping from the live schemas without persisting it.
func (h *MappingsHandler) Auto(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body autoMapRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Label == "" {
		body.Label = "default"
	}
	if body.Direction == "" {
		body.Direction = string(mapping.DirectionBidirectional)
	}

	result, errAuto := h.svc.AutoMap(c.Request.Context(), mapping.AutoMapInput{
		UserID:     userID,
		Repository: body.Repository,
		Table:      body.Table,
		Label:      body.Label,
		Direction:  body.Direction,
	})
	if errAuto != nil {
		respondMappingError(c, errAuto)
		return
	}

	c.JSON(http.StatusOK, result)
}
