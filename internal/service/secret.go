// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/domain"
	"github.com/persistorai/tenantseal/internal/masking"
	"github.com/persistorai/tenantseal/internal/metrics"
	"github.com/persistorai/tenantseal/internal/models"
	"github.com/persistorai/tenantseal/internal/redact"
)

// SecretStore is the data-access interface SecretService depends on.
type SecretStore interface {
	GetSecret(ctx context.Context, tenantID, name string) (*models.StoredSecret, error)
	ListSecrets(ctx context.Context, tenantID string, limit, offset int) ([]models.StoredSecret, bool, error)
	UpsertSecret(ctx context.Context, tenantID string, rec *models.StoredSecret) (bool, error)
	ReplaceBlob(ctx context.Context, tenantID string, id uuid.UUID, oldBlob, newBlob *crypto.EncryptedBlob) (bool, error)
	DeleteSecret(ctx context.Context, tenantID, name string) (uuid.UUID, error)
	ListStale(ctx context.Context, tenantID string, activeVersion int, after uuid.UUID, limit int) ([]models.StoredSecret, error)
	CountByKeyVersion(ctx context.Context, tenantID string) (map[int]int, error)
}

// Compile-time checks.
var (
	_ domain.SecretService = (*SecretService)(nil)
	_ domain.KeyService    = (*SecretService)(nil)
)

// SecretServiceConfig holds the behaviour switches read from configuration.
type SecretServiceConfig struct {
	// MigrateOnRead re-encrypts a revealed secret under the active key when
	// it was sealed under an older one.
	MigrateOnRead bool
	// ReencryptWorkers bounds concurrent migrations in Reencrypt.
	ReencryptWorkers int
}

// SecretService encrypts values on the way into the store and decrypts them
// on the way out. It is the only component that handles plaintext, and it
// logs exclusively through a redacting logger.
type SecretService struct {
	store       SecretStore
	crypto      *crypto.Service
	auditWorker AuditEnqueuer
	log         *redact.Logger
	cfg         SecretServiceConfig
}

// NewSecretService creates a SecretService.
func NewSecretService(
	store SecretStore, cryptoSvc *crypto.Service, auditWorker AuditEnqueuer, log *logrus.Logger, cfg SecretServiceConfig,
) *SecretService {
	if cfg.ReencryptWorkers < 1 {
		cfg.ReencryptWorkers = 1
	}

	metrics.ActiveKeyVersion.Set(float64(cryptoSvc.ActiveVersion()))

	return &SecretService{
		store:       store,
		crypto:      cryptoSvc,
		auditWorker: auditWorker,
		log:         redact.NewLogger(log),
		cfg:         cfg,
	}
}

// auditAsync enqueues an audit entry via the AuditWorker (best-effort, non-blocking).
func (s *SecretService) auditAsync(tenantID, action, entityID string, detail map[string]any) {
	if s.auditWorker == nil {
		return
	}

	entityType := models.AuditEntitySecret
	if action == models.AuditKeysReencrypt {
		entityType = models.AuditEntityKeys
	}

	s.auditWorker.Enqueue(&AuditJob{
		TenantID:   tenantID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
}

// observe records metrics for one crypto call and logs failures.
func (s *SecretService) observe(op string, start time.Time, err error, fields logrus.Fields) {
	metrics.CryptoDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.CryptoOps.WithLabelValues(op, "ok").Inc()
		s.log.Debug("crypto "+op, fields)
		return
	}

	kind := crypto.KindOf(err)
	metrics.CryptoOps.WithLabelValues(op, kind.String()).Inc()

	f := logrus.Fields{"op": op, "kind": kind.String(), "error": err}
	for k, v := range fields {
		f[k] = v
	}

	if kind == crypto.KindKeyMissing || kind == crypto.KindUnknown {
		s.log.Error("crypto operation failed", f)
	} else {
		s.log.Warn("crypto operation rejected", f)
	}
}

// ListSecrets returns a page of secret summaries. Values are never loaded.
func (s *SecretService) ListSecrets(
	ctx context.Context, tenantID string, limit, offset int,
) ([]models.SecretSummary, bool, error) {
	secrets, hasMore, err := s.store.ListSecrets(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, false, err
	}

	out := make([]models.SecretSummary, len(secrets))
	for i := range secrets {
		out[i] = secrets[i].Summary()
	}

	return out, hasMore, nil
}

// PutSecret encrypts value and stores it under name. An existing secret keeps
// its record ID so the new blob stays bound to the same row.
func (s *SecretService) PutSecret(ctx context.Context, tenantID, name string, value any) (*models.PutSecretResult, error) {
	if err := models.ValidateSecretName(name); err != nil {
		return nil, err
	}

	rec := &models.StoredSecret{ID: uuid.New(), TenantID: tenantID, Name: name}

	var previousHash *string

	existing, err := s.store.GetSecret(ctx, tenantID, name)
	switch {
	case existing != nil:
		// A row with an unreadable blob is still overwritten in place.
		rec.ID = existing.ID
		previousHash = existing.ValueHash
	case errors.Is(err, models.ErrSecretNotFound):
	default:
		return nil, err
	}

	fields := logrus.Fields{"tenant_id": tenantID, "name": name, "record_id": rec.ID.String()}

	start := time.Now()
	blob, err := s.crypto.Encrypt(ctx, value, rec.CryptoContext())
	s.observe("encrypt", start, err, fields)
	if err != nil {
		return nil, err
	}

	rec.Blob = blob
	if h, ok := masking.HashValue(value); ok {
		rec.ValueHash = &h
	}

	created, err := s.store.UpsertSecret(ctx, tenantID, rec)
	if err != nil {
		return nil, err
	}

	changed := !sameHash(previousHash, rec.ValueHash) || created

	detail := map[string]any{
		"key_version": blob.KeyVersion,
		"created":     created,
		"changed":     changed,
	}
	if rec.ValueHash != nil {
		detail["value_hash"] = *rec.ValueHash
	}
	s.auditAsync(tenantID, models.AuditSecretPut, name, detail)

	s.log.Info("value stored", logrus.Fields{
		"tenant_id": tenantID, "name": name, "key_version": blob.KeyVersion, "created": created,
	})

	return &models.PutSecretResult{SecretSummary: rec.Summary(), Created: created, Changed: changed}, nil
}

// RevealSecret returns the plaintext value of a secret. When migrate-on-read
// is enabled and the blob predates the active key, it is re-encrypted and
// written back; a failed write-back never fails the read.
func (s *SecretService) RevealSecret(ctx context.Context, tenantID, name string) (*models.SecretValue, error) {
	sec, raw, err := s.open(ctx, tenantID, name)
	if err != nil {
		return nil, err
	}

	out := &models.SecretValue{Name: name, Value: raw, KeyVersion: sec.KeyVersion}

	if s.cfg.MigrateOnRead && s.crypto.NeedsMigration(sec.Blob) {
		if outcome, _ := s.migrateOne(ctx, sec, "read"); outcome == migrated {
			out.KeyVersion = s.crypto.ActiveVersion()
			out.Migrated = true
		}
	}

	s.auditAsync(tenantID, models.AuditSecretReveal, name, map[string]any{"key_version": out.KeyVersion})

	return out, nil
}

// DescribeSecret returns a secret's metadata with its value masked.
func (s *SecretService) DescribeSecret(ctx context.Context, tenantID, name string) (*models.SecretView, error) {
	sec, raw, err := s.open(ctx, tenantID, name)
	if err != nil {
		return nil, err
	}

	value, err := (&models.PutSecretRequest{Value: raw}).Decode()
	if err != nil {
		return nil, err
	}

	return &models.SecretView{
		SecretSummary:  sec.Summary(),
		Masked:         masking.MaskValue(value),
		NeedsMigration: s.crypto.NeedsMigration(sec.Blob),
	}, nil
}

// open loads and decrypts a secret, returning the plaintext JSON.
func (s *SecretService) open(ctx context.Context, tenantID, name string) (*models.StoredSecret, json.RawMessage, error) {
	if err := models.ValidateSecretName(name); err != nil {
		return nil, nil, err
	}

	sec, err := s.store.GetSecret(ctx, tenantID, name)
	if err != nil {
		if crypto.KindOf(err) == crypto.KindInvalidBlob {
			s.log.Warn("stored blob failed validation", logrus.Fields{"tenant_id": tenantID, "name": name, "error": err})
		}
		return nil, nil, err
	}

	fields := logrus.Fields{"tenant_id": tenantID, "name": name, "key_version": sec.KeyVersion}

	var raw json.RawMessage

	start := time.Now()
	err = s.crypto.DecryptInto(ctx, sec.Blob, sec.CryptoContext(), &raw)
	s.observe("decrypt", start, err, fields)
	if err != nil {
		return nil, nil, err
	}

	return sec, raw, nil
}

// DeleteSecret removes a secret.
func (s *SecretService) DeleteSecret(ctx context.Context, tenantID, name string) error {
	if err := models.ValidateSecretName(name); err != nil {
		return err
	}

	id, err := s.store.DeleteSecret(ctx, tenantID, name)
	if err != nil {
		return err
	}

	s.auditAsync(tenantID, models.AuditSecretDelete, name, map[string]any{"record_id": id.String()})

	return nil
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
