package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/models"
)

// defaultRetentionDays applies when DELETE /audit has no retention_days.
const defaultRetentionDays = 90

// AuditHandler serves the tenant's audit trail of secret access.
type AuditHandler struct {
	repo AuditRepository
	log  *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(repo AuditRepository, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, log: log}
}

// Query handles GET /api/v1/audit with optional entity_type, entity_id
// (secret name), action, key_version and since (RFC3339) filters.
func (h *AuditHandler) Query(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	opts := models.AuditQueryOpts{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		Limit:      parseLimit(c.Query("limit"), 50),
		Offset:     parseOffset(c.Query("offset")),
	}

	if kv := c.Query("key_version"); kv != "" {
		v, err := strconv.Atoi(kv)
		if err != nil || v < 1 {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "key_version must be a positive integer")
			return
		}
		opts.KeyVersion = v
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid since format, use RFC3339")
			return
		}
		opts.Since = &t
	}

	if err := opts.Validate(); err != nil {
		respondServiceError(c, h.log, err, "audit.query")
		return
	}

	entries, hasMore, err := h.repo.QueryAudit(c.Request.Context(), tenantID, opts)
	if err != nil {
		respondServiceError(c, h.log, err, "audit.query")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"has_more": hasMore,
	})
}

// Purge handles DELETE /api/v1/audit.
func (h *AuditHandler) Purge(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	retentionDays := defaultRetentionDays
	if rd := c.Query("retention_days"); rd != "" {
		v, err := strconv.Atoi(rd)
		if err != nil || v < 1 {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "retention_days must be a positive integer")
			return
		}
		retentionDays = v
	}

	deleted, err := h.repo.PurgeOldEntries(c.Request.Context(), tenantID, retentionDays)
	if err != nil {
		respondServiceError(c, h.log, err, "audit.purge")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": retentionDays,
	})
}
