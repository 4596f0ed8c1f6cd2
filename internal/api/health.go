// Package api provides the HTTP handlers of the tenantseal server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	db             Database
	keys           KeyChecker
	log            *logrus.Logger
	version        string
	expectedSchema int64
	startTime      time.Time
}

// NewHealthHandler creates a HealthHandler. db and keys may be nil, in which
// case the corresponding checks report "not_configured".
func NewHealthHandler(db Database, keys KeyChecker, log *logrus.Logger, version string, expectedSchema int64) *HealthHandler {
	return &HealthHandler{
		db:             db,
		keys:           keys,
		log:            log,
		version:        version,
		expectedSchema: expectedSchema,
		startTime:      time.Now(),
	}
}

type healthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	ActiveKeyVersion int     `json:"active_key_version,omitempty"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Liveness handles GET /api/v1/health. It only reports that the process is up.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.keys != nil {
		resp.ActiveKeyVersion = h.keys.ActiveVersion()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready: database reachable, schema migrated,
// active encryption key resolvable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"database":       h.checkDatabase(ctx),
		"encryption_key": h.checkKey(ctx),
	}

	checks["schema"] = "unknown"
	if checks["database"] == "ok" {
		checks["schema"] = h.checkSchema(ctx)
	}

	status, code := "ready", http.StatusOK
	for _, v := range checks {
		if v != "ok" && v != "not_configured" {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, readinessResponse{Status: status, Checks: checks})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return "not_configured"
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		return "error"
	}

	return "ok"
}

func (h *HealthHandler) checkSchema(ctx context.Context) string {
	applied, err := h.db.AppliedSchemaVersion(ctx)
	if err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		return "error"
	}

	if applied < h.expectedSchema {
		h.log.WithFields(logrus.Fields{"applied": applied, "expected": h.expectedSchema}).Warn("readiness: schema behind")
		return "outdated"
	}

	return "ok"
}

func (h *HealthHandler) checkKey(ctx context.Context) string {
	if h.keys == nil {
		return "not_configured"
	}

	if err := h.keys.CheckActiveKey(ctx); err != nil {
		h.log.WithError(err).Error("readiness: active key unavailable")
		return "error"
	}

	return "ok"
}
