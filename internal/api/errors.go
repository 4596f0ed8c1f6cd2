package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/httputil"
	"github.com/persistorai/tenantseal/internal/metrics"
	"github.com/persistorai/tenantseal/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeValidationError = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnavailable     = "unavailable"
	ErrCodeKeyMissing      = "key_missing"
	ErrCodeInvalidBlob     = "invalid_blob"
	ErrCodeDecryptFailed   = "decrypt_failed"
)

// respondError writes a standardized JSON error response and counts it.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondServiceError maps a service error to its HTTP response. Crypto
// errors carry no detail beyond their kind; the key version of a missing key
// is logged but not returned.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error, action string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
	case errors.Is(err, models.ErrSecretNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "secret not found")
	case errors.Is(err, models.ErrConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, "secret was modified concurrently, retry")
	case errors.Is(err, crypto.ErrInvalidBlob):
		respondError(c, http.StatusUnprocessableEntity, ErrCodeInvalidBlob, "stored value has an unsupported format")
	case errors.Is(err, crypto.ErrDecryptFailed):
		respondError(c, http.StatusUnprocessableEntity, ErrCodeDecryptFailed, "stored value could not be decrypted")
	case errors.Is(err, crypto.ErrKeyMissing):
		log.WithError(err).WithField("action", action).Error("encryption key unavailable")
		respondError(c, http.StatusInternalServerError, ErrCodeKeyMissing, "encryption key unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "request cancelled")
	default:
		log.WithError(err).WithField("action", action).Error("request failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
