package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/models"
)

// SecretStore provides data access for the tenant_secrets table. It stores
// blobs verbatim and never sees plaintext.
type SecretStore struct {
	Base
}

// NewSecretStore creates a SecretStore.
func NewSecretStore(base Base) *SecretStore {
	return &SecretStore{Base: base}
}

// GetSecret returns the secret stored under name. When the stored blob
// fails validation the row is returned with a nil Blob together with the
// InvalidBlob error, so a caller can still overwrite it under the same ID.
func (s *SecretStore) GetSecret(ctx context.Context, tenantID, name string) (*models.StoredSecret, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	row := tx.QueryRow(ctx,
		`SELECT `+secretColumns+` FROM tenant_secrets
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid AND name = $1`,
		name,
	)

	secret, err := scanSecret(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSecretNotFound
	}

	if err != nil && secret == nil {
		return nil, fmt.Errorf("getting secret: %w", err)
	}

	return secret, err
}

// ListSecrets returns secrets ordered by name without their blobs.
func (s *SecretStore) ListSecrets(ctx context.Context, tenantID string, limit, offset int) ([]models.StoredSecret, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	if limit <= 0 {
		limit = 50
	}

	rows, err := tx.Query(ctx,
		`SELECT `+summaryColumns+` FROM tenant_secrets
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid
		 ORDER BY name LIMIT $1 OFFSET $2`,
		limit+1, offset,
	)
	if err != nil {
		return nil, false, fmt.Errorf("listing secrets: %w", err)
	}
	defer rows.Close()

	secrets := make([]models.StoredSecret, 0, limit)
	for rows.Next() {
		sec, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning secret: %w", err)
		}
		secrets = append(secrets, *sec)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating secrets: %w", err)
	}

	hasMore := len(secrets) > limit
	if hasMore {
		secrets = secrets[:limit]
	}

	return secrets, hasMore, nil
}

// UpsertSecret inserts rec, or replaces the blob of the existing row with the
// same name when that row has the same ID. A row under the same name with a
// different ID yields models.ErrConflict: its blob is bound to the old ID.
// Timestamps on rec are filled in from the database.
func (s *SecretStore) UpsertSecret(ctx context.Context, tenantID string, rec *models.StoredSecret) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	blobJSON, err := rec.Blob.Marshal()
	if err != nil {
		return false, fmt.Errorf("marshaling blob: %w", err)
	}

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	var inserted bool

	err = tx.QueryRow(ctx,
		`INSERT INTO tenant_secrets (id, tenant_id, name, blob, key_version, value_hash)
		 VALUES ($1, current_setting('app.tenant_id')::uuid, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, name) DO UPDATE
		   SET blob = EXCLUDED.blob,
		       key_version = EXCLUDED.key_version,
		       value_hash = EXCLUDED.value_hash,
		       updated_at = NOW()
		   WHERE tenant_secrets.id = EXCLUDED.id
		 RETURNING created_at, updated_at, (xmax = 0)`,
		rec.ID, rec.Name, blobJSON, rec.Blob.KeyVersion, rec.ValueHash,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, models.ErrConflict
	}

	if err != nil {
		return false, fmt.Errorf("upserting secret: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing secret: %w", err)
	}

	rec.TenantID = tenantID
	rec.KeyVersion = rec.Blob.KeyVersion

	return inserted, nil
}

// ReplaceBlob swaps the blob of secret id from oldBlob to newBlob only if the
// stored ciphertext still equals oldBlob's. It returns false when another
// writer changed the row first.
func (s *SecretStore) ReplaceBlob(
	ctx context.Context, tenantID string, id uuid.UUID, oldBlob, newBlob *crypto.EncryptedBlob,
) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	blobJSON, err := newBlob.Marshal()
	if err != nil {
		return false, fmt.Errorf("marshaling blob: %w", err)
	}

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	tag, err := tx.Exec(ctx,
		`UPDATE tenant_secrets SET blob = $1, key_version = $2, updated_at = NOW()
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid
		   AND id = $3 AND blob->>'ctB64' = $4`,
		blobJSON, newBlob.KeyVersion, id, oldBlob.CtB64,
	)
	if err != nil {
		return false, fmt.Errorf("replacing blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing blob: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteSecret removes the secret stored under name and returns its ID.
func (s *SecretStore) DeleteSecret(ctx context.Context, tenantID, name string) (uuid.UUID, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	var id uuid.UUID

	err = tx.QueryRow(ctx,
		`DELETE FROM tenant_secrets
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid AND name = $1
		 RETURNING id`,
		name,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, models.ErrSecretNotFound
	}

	if err != nil {
		return uuid.Nil, fmt.Errorf("deleting secret: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing delete: %w", err)
	}

	return id, nil
}

// ListStale returns up to limit secrets sealed under a key version older than
// activeVersion with an ID greater than after, ordered by ID. Rows whose blob
// fails validation are returned with a nil Blob.
func (s *SecretStore) ListStale(
	ctx context.Context, tenantID string, activeVersion int, after uuid.UUID, limit int,
) ([]models.StoredSecret, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx,
		`SELECT `+secretColumns+` FROM tenant_secrets
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid
		   AND key_version < $1 AND id > $2
		 ORDER BY id LIMIT $3`,
		activeVersion, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale secrets: %w", err)
	}
	defer rows.Close()

	var secrets []models.StoredSecret
	for rows.Next() {
		sec, err := scanSecret(rows.Scan)
		if sec == nil {
			return nil, fmt.Errorf("scanning stale secret: %w", err)
		}

		if err != nil {
			s.Log.WithError(err).WithField("secret_id", sec.ID).Warn("stored blob failed validation")
		}

		secrets = append(secrets, *sec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale secrets: %w", err)
	}

	return secrets, nil
}

// CountByKeyVersion returns the number of secrets sealed under each key version.
func (s *SecretStore) CountByKeyVersion(ctx context.Context, tenantID string) (map[int]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx,
		`SELECT key_version, COUNT(*) FROM tenant_secrets
		 WHERE tenant_id = current_setting('app.tenant_id')::uuid
		 GROUP BY key_version`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting key versions: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var version, n int
		if err := rows.Scan(&version, &n); err != nil {
			return nil, fmt.Errorf("scanning key version count: %w", err)
		}
		counts[version] = n
	}

	return counts, rows.Err()
}
