package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// KeyHandler serves key rotation endpoints.
type KeyHandler struct {
	svc KeyService
	log *logrus.Logger
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(svc KeyService, log *logrus.Logger) *KeyHandler {
	return &KeyHandler{svc: svc, log: log}
}

// Status handles GET /api/v1/keys/status.
func (h *KeyHandler) Status(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	status, err := h.svc.RotationStatus(c.Request.Context(), tenantID)
	if err != nil {
		respondServiceError(c, h.log, err, "keys.status")
		return
	}

	c.JSON(http.StatusOK, status)
}

// Reencrypt handles POST /api/v1/keys/reencrypt. It runs to completion within
// the request; secrets migrated before a cancellation stay migrated.
func (h *KeyHandler) Reencrypt(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	res, err := h.svc.Reencrypt(c.Request.Context(), tenantID)
	if err != nil {
		respondServiceError(c, h.log, err, "keys.reencrypt")
		return
	}

	h.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"migrated":  res.Migrated,
		"failed":    res.Failed,
	}).Info("reencrypt requested")

	c.JSON(http.StatusOK, res)
}
