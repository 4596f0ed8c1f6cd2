package models

import (
	"slices"
	"time"
)

// Audit actions recorded for secrets.
const (
	AuditSecretPut     = "secret.put"
	AuditSecretReveal  = "secret.reveal"
	AuditSecretDelete  = "secret.delete"
	AuditSecretMigrate = "secret.migrate"
	AuditKeysReencrypt = "keys.reencrypt"
)

// Audit entity types.
const (
	AuditEntitySecret = "secret"
	AuditEntityKeys   = "keys"
)

var auditActions = []string{
	AuditSecretPut, AuditSecretReveal, AuditSecretDelete, AuditSecretMigrate, AuditKeysReencrypt,
}

// AuditActions returns every action the service records.
func AuditActions() []string {
	return slices.Clone(auditActions)
}

// AuditEntry represents a single audit log entry. Detail never holds a
// secret value, only hashes and key versions.
type AuditEntry struct {
	ID         int64          `json:"id"`
	TenantID   string         `json:"-"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditQueryOpts holds filters for querying the audit log. EntityID is the
// secret name. KeyVersion matches entries that wrote, read or migrated under
// that key version.
type AuditQueryOpts struct {
	EntityType string
	EntityID   string
	Action     string
	KeyVersion int
	Since      *time.Time
	Limit      int
	Offset     int
}

// Validate rejects filters that can never match a recorded entry.
func (o AuditQueryOpts) Validate() error {
	if o.Action != "" && !slices.Contains(auditActions, o.Action) {
		return invalid("unknown audit action %q", o.Action)
	}

	if o.EntityType != "" && o.EntityType != AuditEntitySecret && o.EntityType != AuditEntityKeys {
		return invalid("entity_type must be %q or %q", AuditEntitySecret, AuditEntityKeys)
	}

	if o.KeyVersion < 0 {
		return invalid("key_version must be positive")
	}

	return nil
}
