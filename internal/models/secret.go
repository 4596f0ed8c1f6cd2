// Package models defines data types for tenant secrets and their audit trail.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/tenantseal/internal/crypto"
)

const (
	maxNameLen  = 255
	maxValueLen = 65536
)

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// StoredSecret is a row of tenant_secrets. ID is the record ID bound into
// the blob's authenticated context.
type StoredSecret struct {
	ID         uuid.UUID
	TenantID   string
	Name       string
	Blob       *crypto.EncryptedBlob
	KeyVersion int
	ValueHash  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CryptoContext returns the context every crypto call on this secret must use.
func (s *StoredSecret) CryptoContext() crypto.Context {
	return crypto.Context{TenantID: s.TenantID, RecordID: s.ID.String()}
}

// SecretSummary is the listing representation. It never includes the value.
type SecretSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	KeyVersion int       `json:"key_version"`
	ValueHash  *string   `json:"value_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SecretView describes a secret with its value masked for display.
type SecretView struct {
	SecretSummary
	Masked         any  `json:"masked"`
	NeedsMigration bool `json:"needs_migration"`
}

// SecretValue is a revealed secret.
type SecretValue struct {
	Name       string `json:"name"`
	Value      any    `json:"value"`
	KeyVersion int    `json:"key_version"`
	Migrated   bool   `json:"migrated"`
}

// PutSecretResult is returned after storing a secret.
type PutSecretResult struct {
	SecretSummary
	Created bool `json:"created"`
	Changed bool `json:"changed"`
}

// PutSecretRequest is the payload for storing a secret.
type PutSecretRequest struct {
	Value json.RawMessage `json:"value"`
}

// Validate checks that a value is present and within limits.
func (r *PutSecretRequest) Validate() error {
	if len(r.Value) == 0 {
		return ErrMissingValue
	}

	if len(r.Value) > maxValueLen {
		return ErrFieldTooLong("value", maxValueLen)
	}

	return nil
}

// ValidateSecretName checks a secret name used in a path or command.
func ValidateSecretName(name string) error {
	if name == "" {
		return ErrMissingName
	}

	if len(name) > maxNameLen {
		return ErrFieldTooLong("name", maxNameLen)
	}

	if !validName.MatchString(name) {
		return ErrInvalidName
	}

	return nil
}

// Summary returns the listing view of a stored secret.
func (s *StoredSecret) Summary() SecretSummary {
	return SecretSummary{
		ID:         s.ID.String(),
		Name:       s.Name,
		KeyVersion: s.KeyVersion,
		ValueHash:  s.ValueHash,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// RotationStatus reports how a tenant's secrets are spread over key versions.
type RotationStatus struct {
	ActiveVersion int         `json:"active_version"`
	Counts        map[int]int `json:"counts"`
	Total         int         `json:"total"`
	Stale         int         `json:"stale"`
}

// ReencryptResult summarises a bulk re-encryption run.
type ReencryptResult struct {
	ActiveVersion int      `json:"active_version"`
	Migrated      int      `json:"migrated"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors,omitempty"`
}

// Decode parses the raw value, keeping numbers as json.Number so large
// integers survive a round trip.
func (r *PutSecretRequest) Decode() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Value))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}

	return v, nil
}
