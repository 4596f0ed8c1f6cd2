// Package domain defines the canonical service interfaces shared by the HTTP
// layer and the services. Consumers should depend on these interfaces rather
// than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/tenantseal/internal/models"
)

// SecretService defines operations on a tenant's stored secrets. Values
// cross this boundary in plaintext; everything below it sees only blobs.
type SecretService interface {
	ListSecrets(ctx context.Context, tenantID string, limit, offset int) ([]models.SecretSummary, bool, error)
	DescribeSecret(ctx context.Context, tenantID, name string) (*models.SecretView, error)
	RevealSecret(ctx context.Context, tenantID, name string) (*models.SecretValue, error)
	PutSecret(ctx context.Context, tenantID, name string, value any) (*models.PutSecretResult, error)
	DeleteSecret(ctx context.Context, tenantID, name string) error
}

// KeyService defines key rotation operations.
type KeyService interface {
	RotationStatus(ctx context.Context, tenantID string) (*models.RotationStatus, error)
	Reencrypt(ctx context.Context, tenantID string) (*models.ReencryptResult, error)
}

// AuditService defines audit log query and maintenance operations.
type AuditService interface {
	Auditor
	QueryAudit(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	PurgeOldEntries(ctx context.Context, tenantID string, retentionDays int) (int, error)
}

// Auditor is the minimal interface for recording audit entries.
type Auditor interface {
	RecordAudit(ctx context.Context, tenantID, action, entityType, entityID, actor string, detail map[string]any) error
}
