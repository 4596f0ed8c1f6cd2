package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/tenantseal/internal/httputil"
	"github.com/persistorai/tenantseal/internal/metrics"
)

// respondError counts the error code and writes the shared error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
