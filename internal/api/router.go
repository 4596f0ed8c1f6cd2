package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/middleware"
	"github.com/persistorai/tenantseal/internal/security"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log            *logrus.Logger
	DB             Database
	Keys           KeyChecker
	Secrets        SecretService
	KeyOps         KeyService
	Audit          AuditRepository
	TenantLookup   middleware.TenantLookup
	CORSOrigins    []string
	Version        string
	ExpectedSchema int64
}

// Router-level limits.
const (
	maxBodySize = 256 << 10 // secret values are capped at 64 KB of JSON
	rateLimit   = 50        // requests per second per IP
	rateBurst   = 100
)

func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.Metrics())
}

func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.DB, deps.Keys, log, deps.Version, deps.ExpectedSchema)
	secrets := NewSecretHandler(deps.Secrets, log)
	keys := NewKeyHandler(deps.KeyOps, log)
	audit := NewAuditHandler(deps.Audit, log)

	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	guard := security.NewBruteForceGuard(ctx, log)
	api.Use(middleware.BruteForceMiddleware(guard))
	api.Use(middleware.AuthMiddleware(middleware.NewCachedTenantLookup(ctx, deps.TenantLookup), log, guard))

	api.GET("/secrets", secrets.List)
	api.GET("/secrets/:name", secrets.Get)
	api.GET("/secrets/:name/value", secrets.Reveal)
	api.PUT("/secrets/:name", secrets.Put)
	api.DELETE("/secrets/:name", secrets.Delete)

	api.GET("/keys/status", keys.Status)
	api.POST("/keys/reencrypt", keys.Reencrypt)

	api.GET("/audit", audit.Query)
	api.DELETE("/audit", audit.Purge)
}

// NewRouter creates the gin engine. ctx bounds the background goroutines of
// the rate limiter, lockout guard and tenant cache. Metrics are served by a
// separate listener.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
