package api

import (
	"context"

	"github.com/persistorai/tenantseal/internal/domain"
)

// SecretService is the secret operations used by SecretHandler.
type SecretService = domain.SecretService

// KeyService is the rotation operations used by KeyHandler.
type KeyService = domain.KeyService

// AuditRepository is the audit operations used by AuditHandler.
type AuditRepository = domain.AuditService

// Database is what the health endpoints need from the connection pool.
type Database interface {
	HealthCheck(ctx context.Context) error
	AppliedSchemaVersion(ctx context.Context) (int64, error)
}

// KeyChecker verifies that the active encryption key can be resolved.
type KeyChecker interface {
	CheckActiveKey(ctx context.Context) error
	ActiveVersion() int
}
