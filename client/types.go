package client

import (
	"encoding/json"
	"time"
)

// Secret is the metadata of a stored secret. Values are never included.
type Secret struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	KeyVersion int       `json:"key_version"`
	ValueHash  *string   `json:"value_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SecretView is a secret with its value masked for display.
type SecretView struct {
	Secret
	Masked         any  `json:"masked"`
	NeedsMigration bool `json:"needs_migration"`
}

// SecretValue is a revealed secret. Numbers in Value decode as json.Number.
type SecretValue struct {
	Name       string `json:"name"`
	Value      any    `json:"value"`
	KeyVersion int    `json:"key_version"`
	Migrated   bool   `json:"migrated"`
}

// PutResult reports the outcome of storing a secret.
type PutResult struct {
	Secret
	Created bool `json:"created"`
	Changed bool `json:"changed"`
}

// putRequest is the payload for storing a secret.
type putRequest struct {
	Value json.RawMessage `json:"value"`
}

// ListOptions controls pagination.
type ListOptions struct {
	Limit  int
	Offset int
}

// RotationStatus counts a tenant's secrets per key version.
type RotationStatus struct {
	ActiveVersion int            `json:"active_version"`
	Counts        map[string]int `json:"counts"`
	Total         int            `json:"total"`
	Stale         int            `json:"stale"`
}

// ReencryptResult summarises a bulk re-encryption run.
type ReencryptResult struct {
	ActiveVersion int      `json:"active_version"`
	Migrated      int      `json:"migrated"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors,omitempty"`
}

// AuditEntry represents a single audit log record. Detail is redacted
// server-side before it is stored.
type AuditEntry struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditQueryOptions filters audit log queries.
type AuditQueryOptions struct {
	EntityType string
	// EntityID is the secret name.
	EntityID string
	Action   string
	// KeyVersion keeps entries that used the given key version.
	KeyVersion int
	Since      *time.Time
	Limit      int
	Offset     int
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	ActiveKeyVersion int     `json:"active_key_version,omitempty"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// ReadinessResponse is returned by the readiness endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
