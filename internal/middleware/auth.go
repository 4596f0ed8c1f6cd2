package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/masking"
	"github.com/persistorai/tenantseal/internal/security"
	"github.com/persistorai/tenantseal/internal/store"
)

// TenantIDKey is the gin context key holding the authenticated tenant ID.
const TenantIDKey = "tenant_id"

// authTimingFloor is the minimum duration of a rejected authentication, so
// response time does not reveal whether a key exists.
const authTimingFloor = 50 * time.Millisecond

// TenantLookup resolves an API key to a tenant ID. Unknown keys return an
// error matching store.ErrTenantNotFound; any other error is a backend failure.
type TenantLookup interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AuthMiddleware authenticates requests by bearer API key and stores the
// tenant ID under TenantIDKey. A nil guard disables lockout tracking.
func AuthMiddleware(lookup TenantLookup, log *logrus.Logger, guard *security.BruteForceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		tenantID, err := lookup.GetTenantByAPIKey(c.Request.Context(), apiKey)
		switch {
		case errors.Is(err, store.ErrTenantNotFound):
			logAuthFailure(log, c, apiKey)
			if guard != nil {
				guard.RecordFailure(apiKey)
			}
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		case err != nil:
			log.WithError(err).WithField("request_id", c.GetString(RequestIDKey)).Error("tenant lookup failed")
			respondError(c, http.StatusServiceUnavailable, "unavailable", "authentication backend unavailable")
			return
		}

		if guard != nil {
			guard.ResetKey(apiKey)
		}

		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// BruteForceMiddleware rejects requests whose bearer key is locked out.
func BruteForceMiddleware(guard *security.BruteForceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := ExtractBearerToken(c)
		if apiKey == "" {
			c.Next()
			return
		}

		if until, locked := guard.LockedUntil(apiKey); locked {
			retry := int(time.Until(until).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}

// ExtractBearerToken returns the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// logAuthFailure logs a rejected key by its masked form only.
func logAuthFailure(log *logrus.Logger, c *gin.Context, apiKey string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
		"key_hint":   masking.Mask(apiKey),
	}).Warn("authentication failed: unknown api key")
}
