package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/tenantseal/internal/dbpool"
)

// apiKeyPrefix marks tenantseal API keys so they are recognisable in
// secret scanners.
const apiKeyPrefix = "ts_"

// ErrTenantNotFound is returned when no tenant matches an API key.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantStore handles tenant lookups (API key → tenant ID). The tenants
// table has no RLS; it is the entry point for resolving a tenant.
type TenantStore struct {
	Pool *dbpool.Pool
}

// NewTenantStore creates a new TenantStore.
func NewTenantStore(pool *dbpool.Pool) *TenantStore {
	return &TenantStore{Pool: pool}
}

// HashAPIKey returns the stored form of an API key.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GetTenantByAPIKey looks up a tenant ID by API key hash.
func (s *TenantStore) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tenantID string

	err := s.Pool.QueryRow(ctx, "SELECT id FROM tenants WHERE api_key_hash = $1", HashAPIKey(apiKey)).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrTenantNotFound
	}

	if err != nil {
		return "", fmt.Errorf("looking up tenant by API key: %w", err)
	}

	return tenantID, nil
}

// CreateTenant inserts a tenant and returns its ID with a freshly generated
// API key. Only the key's hash is stored.
func (s *TenantStore) CreateTenant(ctx context.Context, name string) (tenantID, apiKey string, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating API key: %w", err)
	}

	apiKey = apiKeyPrefix + hex.EncodeToString(raw)
	tenantID = uuid.New().String()

	_, err = s.Pool.Exec(ctx,
		"INSERT INTO tenants (id, name, api_key_hash) VALUES ($1, $2, $3)",
		tenantID, name, HashAPIKey(apiKey),
	)
	if err != nil {
		return "", "", fmt.Errorf("creating tenant: %w", err)
	}

	return tenantID, apiKey, nil
}
