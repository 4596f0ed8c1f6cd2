package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the server in the error envelope.
const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInvalidBlob   = "invalid_blob"
	CodeDecryptFailed = "decrypt_failed"
	CodeKeyMissing    = "key_missing"
	CodeUnavailable   = "unavailable"
)

// APIError represents a structured error response from the tenantseal API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("tenantseal: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("tenantseal: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func asAPIError(err error) (*APIError, bool) {
	var e *APIError
	ok := errors.As(err, &e)
	return e, ok
}

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if the error is a 409 conflict.
func IsConflict(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusConflict
}

// IsRateLimited returns true if the error is a 429 rate limit or lockout.
func IsRateLimited(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized returns true if the API key was rejected.
func IsUnauthorized(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusUnauthorized
}

// IsCryptoFailure returns true if the server could not open a stored envelope,
// either because the blob is malformed or authentication failed.
func IsCryptoFailure(err error) bool {
	e, ok := asAPIError(err)
	return ok && (e.Code == CodeInvalidBlob || e.Code == CodeDecryptFailed)
}

// IsKeyMissing returns true if the server lacks the key version a secret needs.
func IsKeyMissing(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.Code == CodeKeyMissing
}

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	return apiErr
}
