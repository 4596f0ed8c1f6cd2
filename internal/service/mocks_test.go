package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/models"
)

// mockSecretStore records calls and returns configured responses.
type mockSecretStore struct {
	mu    sync.Mutex
	calls []string

	getSecret         func(ctx context.Context, tenantID, name string) (*models.StoredSecret, error)
	listSecrets       func(ctx context.Context, tenantID string, limit, offset int) ([]models.StoredSecret, bool, error)
	upsertSecret      func(ctx context.Context, tenantID string, rec *models.StoredSecret) (bool, error)
	replaceBlob       func(ctx context.Context, tenantID string, id uuid.UUID, oldBlob, newBlob *crypto.EncryptedBlob) (bool, error)
	deleteSecret      func(ctx context.Context, tenantID, name string) (uuid.UUID, error)
	listStale         func(ctx context.Context, tenantID string, activeVersion int, after uuid.UUID, limit int) ([]models.StoredSecret, error)
	countByKeyVersion func(ctx context.Context, tenantID string) (map[int]int, error)
}

func (m *mockSecretStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockSecretStore) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}

	return n
}

func (m *mockSecretStore) GetSecret(ctx context.Context, tenantID, name string) (*models.StoredSecret, error) {
	m.record("GetSecret")
	return m.getSecret(ctx, tenantID, name)
}

func (m *mockSecretStore) ListSecrets(ctx context.Context, tenantID string, limit, offset int) ([]models.StoredSecret, bool, error) {
	m.record("ListSecrets")
	return m.listSecrets(ctx, tenantID, limit, offset)
}

func (m *mockSecretStore) UpsertSecret(ctx context.Context, tenantID string, rec *models.StoredSecret) (bool, error) {
	m.record("UpsertSecret")
	return m.upsertSecret(ctx, tenantID, rec)
}

func (m *mockSecretStore) ReplaceBlob(ctx context.Context, tenantID string, id uuid.UUID, oldBlob, newBlob *crypto.EncryptedBlob) (bool, error) {
	m.record("ReplaceBlob")
	return m.replaceBlob(ctx, tenantID, id, oldBlob, newBlob)
}

func (m *mockSecretStore) DeleteSecret(ctx context.Context, tenantID, name string) (uuid.UUID, error) {
	m.record("DeleteSecret")
	return m.deleteSecret(ctx, tenantID, name)
}

func (m *mockSecretStore) ListStale(ctx context.Context, tenantID string, activeVersion int, after uuid.UUID, limit int) ([]models.StoredSecret, error) {
	m.record("ListStale")
	return m.listStale(ctx, tenantID, activeVersion, after, limit)
}

func (m *mockSecretStore) CountByKeyVersion(ctx context.Context, tenantID string) (map[int]int, error) {
	m.record("CountByKeyVersion")
	return m.countByKeyVersion(ctx, tenantID)
}

// memSecrets is an in-memory table wired into a mockSecretStore. It mirrors
// the database semantics the service relies on: upsert keyed by name and
// bound to the row ID, and compare-and-swap on the stored ciphertext.
type memSecrets struct {
	mu   sync.Mutex
	rows map[string]models.StoredSecret
}

func newMemStore() (*mockSecretStore, *memSecrets) {
	mem := &memSecrets{rows: make(map[string]models.StoredSecret)}

	m := &mockSecretStore{
		getSecret: func(_ context.Context, _, name string) (*models.StoredSecret, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()

			row, ok := mem.rows[name]
			if !ok {
				return nil, models.ErrSecretNotFound
			}

			return &row, nil
		},
		listSecrets: func(_ context.Context, _ string, limit, offset int) ([]models.StoredSecret, bool, error) {
			all := mem.sorted()
			if offset > len(all) {
				offset = len(all)
			}
			all = all[offset:]
			hasMore := len(all) > limit
			if hasMore {
				all = all[:limit]
			}
			return all, hasMore, nil
		},
		upsertSecret: func(_ context.Context, tenantID string, rec *models.StoredSecret) (bool, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()

			existing, ok := mem.rows[rec.Name]
			if ok && existing.ID != rec.ID {
				return false, models.ErrConflict
			}

			rec.TenantID = tenantID
			rec.KeyVersion = rec.Blob.KeyVersion
			mem.rows[rec.Name] = *rec

			return !ok, nil
		},
		replaceBlob: func(_ context.Context, _ string, id uuid.UUID, oldBlob, newBlob *crypto.EncryptedBlob) (bool, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()

			for name, row := range mem.rows {
				if row.ID != id {
					continue
				}
				if row.Blob == nil || row.Blob.CtB64 != oldBlob.CtB64 {
					return false, nil
				}
				row.Blob = newBlob
				row.KeyVersion = newBlob.KeyVersion
				mem.rows[name] = row
				return true, nil
			}

			return false, nil
		},
		deleteSecret: func(_ context.Context, _, name string) (uuid.UUID, error) {
			mem.mu.Lock()
			defer mem.mu.Unlock()

			row, ok := mem.rows[name]
			if !ok {
				return uuid.Nil, models.ErrSecretNotFound
			}
			delete(mem.rows, name)

			return row.ID, nil
		},
		listStale: func(_ context.Context, _ string, active int, after uuid.UUID, limit int) ([]models.StoredSecret, error) {
			all := mem.sorted()
			sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })

			var out []models.StoredSecret
			for _, row := range all {
				if row.KeyVersion < active && row.ID.String() > after.String() {
					out = append(out, row)
				}
				if len(out) == limit {
					break
				}
			}

			return out, nil
		},
		countByKeyVersion: func(_ context.Context, _ string) (map[int]int, error) {
			counts := make(map[int]int)
			for _, row := range mem.sorted() {
				counts[row.KeyVersion]++
			}
			return counts, nil
		},
	}

	return m, mem
}

func (m *memSecrets) sorted() []models.StoredSecret {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.StoredSecret, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func (m *memSecrets) get(name string) models.StoredSecret {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rows[name]
}

// mockAuditor records audit calls.
type mockAuditor struct {
	mu    sync.Mutex
	calls []AuditJob

	err error
}

func (m *mockAuditor) RecordAudit(ctx context.Context, tenantID, action, entityType, entityID, actor string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, AuditJob{
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Detail:     detail,
	})
	return m.err
}

func (m *mockAuditor) getCalls() []AuditJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]AuditJob, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// mockEnqueuer records enqueued audit jobs synchronously.
type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*AuditJob
}

func (m *mockEnqueuer) Enqueue(job *AuditJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockEnqueuer) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.jobs))
	for i, j := range m.jobs {
		out[i] = j.Action
	}

	return out
}
