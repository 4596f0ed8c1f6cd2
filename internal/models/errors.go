package models

import (
	"errors"
	"fmt"
)

// ErrValidation matches every input validation error (HTTP 400).
var ErrValidation = errors.New("validation failed")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// Sentinel errors for validation.
var (
	ErrMissingName  = invalid("name is required")
	ErrInvalidName  = invalid("name may only contain letters, digits, '.', '_' and '-'")
	ErrMissingValue = invalid("value is required")
)

// ErrSecretNotFound is returned when no secret exists under a name.
var ErrSecretNotFound = errors.New("secret not found")

// ErrConflict indicates a write lost to a concurrent writer or would rebind a
// blob to a different record (maps to HTTP 409 Conflict).
var ErrConflict = errors.New("conflict")

// ErrFieldTooLong returns a validation error for a field over its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return invalid("%s exceeds maximum length of %d", field, maxLen)
}
