package store

import (
	"fmt"

	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/models"
)

// secretColumns lists the columns selected for full secret rows.
const secretColumns = `id, tenant_id, name, blob, key_version, value_hash, created_at, updated_at`

// summaryColumns lists the columns selected for listings (no blob).
const summaryColumns = `id, tenant_id, name, key_version, value_hash, created_at, updated_at`

// scanSecret scans a full row. The stored blob is parsed and validated; a
// malformed blob yields the row with a nil Blob and an InvalidBlob error so
// callers can decide whether to skip it.
func scanSecret(scan func(dest ...any) error) (*models.StoredSecret, error) {
	var s models.StoredSecret
	var raw []byte

	err := scan(
		&s.ID,
		&s.TenantID,
		&s.Name,
		&raw,
		&s.KeyVersion,
		&s.ValueHash,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	blob, err := crypto.ParseBlob(raw)
	if err != nil {
		return &s, fmt.Errorf("secret %q: %w", s.Name, err)
	}

	s.Blob = blob

	return &s, nil
}

// scanSummary scans a listing row.
func scanSummary(scan func(dest ...any) error) (*models.StoredSecret, error) {
	var s models.StoredSecret

	err := scan(
		&s.ID,
		&s.TenantID,
		&s.Name,
		&s.KeyVersion,
		&s.ValueHash,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &s, nil
}
