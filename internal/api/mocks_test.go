package api_test

import (
	"context"
	"errors"

	"github.com/persistorai/tenantseal/internal/models"
)

var errNotImplemented = errors.New("not implemented")

// mockSecretService implements api.SecretService for testing. Unset
// functions return errNotImplemented.
type mockSecretService struct {
	listFn     func(ctx context.Context, tenantID string, limit, offset int) ([]models.SecretSummary, bool, error)
	describeFn func(ctx context.Context, tenantID, name string) (*models.SecretView, error)
	revealFn   func(ctx context.Context, tenantID, name string) (*models.SecretValue, error)
	putFn      func(ctx context.Context, tenantID, name string, value any) (*models.PutSecretResult, error)
	deleteFn   func(ctx context.Context, tenantID, name string) error
}

func (m *mockSecretService) ListSecrets(ctx context.Context, tenantID string, limit, offset int) ([]models.SecretSummary, bool, error) {
	if m.listFn == nil {
		return nil, false, errNotImplemented
	}
	return m.listFn(ctx, tenantID, limit, offset)
}

func (m *mockSecretService) DescribeSecret(ctx context.Context, tenantID, name string) (*models.SecretView, error) {
	if m.describeFn == nil {
		return nil, errNotImplemented
	}
	return m.describeFn(ctx, tenantID, name)
}

func (m *mockSecretService) RevealSecret(ctx context.Context, tenantID, name string) (*models.SecretValue, error) {
	if m.revealFn == nil {
		return nil, errNotImplemented
	}
	return m.revealFn(ctx, tenantID, name)
}

func (m *mockSecretService) PutSecret(ctx context.Context, tenantID, name string, value any) (*models.PutSecretResult, error) {
	if m.putFn == nil {
		return nil, errNotImplemented
	}
	return m.putFn(ctx, tenantID, name, value)
}

func (m *mockSecretService) DeleteSecret(ctx context.Context, tenantID, name string) error {
	if m.deleteFn == nil {
		return errNotImplemented
	}
	return m.deleteFn(ctx, tenantID, name)
}

// mockKeyService implements api.KeyService for testing.
type mockKeyService struct {
	statusFn    func(ctx context.Context, tenantID string) (*models.RotationStatus, error)
	reencryptFn func(ctx context.Context, tenantID string) (*models.ReencryptResult, error)
}

func (m *mockKeyService) RotationStatus(ctx context.Context, tenantID string) (*models.RotationStatus, error) {
	return m.statusFn(ctx, tenantID)
}

func (m *mockKeyService) Reencrypt(ctx context.Context, tenantID string) (*models.ReencryptResult, error) {
	return m.reencryptFn(ctx, tenantID)
}

// mockAuditRepo implements api.AuditRepository for testing.
type mockAuditRepo struct {
	queryFn func(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	purgeFn func(ctx context.Context, tenantID string, retentionDays int) (int, error)
}

func (m *mockAuditRepo) RecordAudit(context.Context, string, string, string, string, string, map[string]any) error {
	return nil
}

func (m *mockAuditRepo) QueryAudit(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, tenantID, opts)
}

func (m *mockAuditRepo) PurgeOldEntries(ctx context.Context, tenantID string, retentionDays int) (int, error) {
	return m.purgeFn(ctx, tenantID, retentionDays)
}

// mockDB implements api.Database for testing.
type mockDB struct {
	healthErr error
	schema    int64
	schemaErr error
}

func (m *mockDB) HealthCheck(context.Context) error { return m.healthErr }

func (m *mockDB) AppliedSchemaVersion(context.Context) (int64, error) { return m.schema, m.schemaErr }

// mockKeys implements api.KeyChecker for testing.
type mockKeys struct {
	active int
	err    error
}

func (m *mockKeys) CheckActiveKey(context.Context) error { return m.err }

func (m *mockKeys) ActiveVersion() int { return m.active }

// mockTenantLookup implements middleware.TenantLookup for router tests.
type mockTenantLookup struct {
	keys map[string]string
	err  error
}

func (m *mockTenantLookup) GetTenantByAPIKey(_ context.Context, apiKey string) (string, error) {
	if tid, ok := m.keys[apiKey]; ok {
		return tid, nil
	}
	return "", m.err
}
