package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/models"
)

// SecretHandler serves the secret endpoints. It never logs values.
type SecretHandler struct {
	svc SecretService
	log *logrus.Logger
}

// NewSecretHandler creates a SecretHandler.
func NewSecretHandler(svc SecretService, log *logrus.Logger) *SecretHandler {
	return &SecretHandler{svc: svc, log: log}
}

// List handles GET /api/v1/secrets.
func (h *SecretHandler) List(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	secrets, hasMore, err := h.svc.ListSecrets(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		respondServiceError(c, h.log, err, "secret.list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"secrets": secrets, "has_more": hasMore})
}

// Get handles GET /api/v1/secrets/:name. The value is returned masked.
func (h *SecretHandler) Get(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	view, err := h.svc.DescribeSecret(c.Request.Context(), tenantID, c.Param("name"))
	if err != nil {
		respondServiceError(c, h.log, err, "secret.describe")
		return
	}

	c.JSON(http.StatusOK, view)
}

// Reveal handles GET /api/v1/secrets/:name/value.
func (h *SecretHandler) Reveal(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	val, err := h.svc.RevealSecret(c.Request.Context(), tenantID, c.Param("name"))
	if err != nil {
		respondServiceError(c, h.log, err, "secret.reveal")
		return
	}

	c.JSON(http.StatusOK, val)
}

// Put handles PUT /api/v1/secrets/:name with body {"value": <any JSON>}.
func (h *SecretHandler) Put(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	var req models.PutSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	value, err := req.Decode()
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "value is not valid JSON")
		return
	}

	res, err := h.svc.PutSecret(c.Request.Context(), tenantID, c.Param("name"), value)
	if err != nil {
		respondServiceError(c, h.log, err, "secret.put")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}

	c.JSON(status, res)
}

// Delete handles DELETE /api/v1/secrets/:name.
func (h *SecretHandler) Delete(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	if err := h.svc.DeleteSecret(c.Request.Context(), tenantID, c.Param("name")); err != nil {
		respondServiceError(c, h.log, err, "secret.delete")
		return
	}

	c.Status(http.StatusNoContent)
}
