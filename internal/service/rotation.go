package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/tenantseal/internal/metrics"
	"github.com/persistorai/tenantseal/internal/models"
)

const (
	reencryptBatchSize = 100
	maxReportedErrors  = 20
)

type migrationOutcome int

const (
	migrated migrationOutcome = iota
	// lostRace means another writer replaced the blob first. The other
	// writer's blob is equally valid, so nothing is lost.
	lostRace
	failed
)

// migrateOne re-encrypts sec under the active key and swaps it in with a
// compare-and-swap on the old ciphertext.
func (s *SecretService) migrateOne(ctx context.Context, sec *models.StoredSecret, trigger string) (migrationOutcome, error) {
	fields := logrus.Fields{"tenant_id": sec.TenantID, "name": sec.Name, "from_version": sec.KeyVersion, "trigger": trigger}

	if sec.Blob == nil {
		metrics.MigrationsTotal.WithLabelValues(trigger, "failed").Inc()
		return failed, fmt.Errorf("%s: stored blob failed validation", sec.Name)
	}

	start := time.Now()
	newBlob, err := s.crypto.MigrateBlob(ctx, sec.Blob, sec.CryptoContext())
	s.observe("migrate", start, err, fields)
	if err != nil {
		metrics.MigrationsTotal.WithLabelValues(trigger, "failed").Inc()
		return failed, fmt.Errorf("%s: %w", sec.Name, err)
	}

	swapped, err := s.store.ReplaceBlob(ctx, sec.TenantID, sec.ID, sec.Blob, newBlob)
	if err != nil {
		metrics.MigrationsTotal.WithLabelValues(trigger, "failed").Inc()
		s.log.Warn("migration write-back failed", logrus.Fields{"tenant_id": sec.TenantID, "name": sec.Name, "error": err})
		return failed, fmt.Errorf("%s: %w", sec.Name, err)
	}

	if !swapped {
		metrics.MigrationsTotal.WithLabelValues(trigger, "lost_race").Inc()
		s.log.Debug("migration lost race", fields)
		return lostRace, nil
	}

	metrics.MigrationsTotal.WithLabelValues(trigger, "migrated").Inc()
	s.auditAsync(sec.TenantID, models.AuditSecretMigrate, sec.Name, map[string]any{
		"from_version": sec.KeyVersion,
		"to_version":   newBlob.KeyVersion,
		"trigger":      trigger,
	})

	return migrated, nil
}

// RotationStatus reports how a tenant's secrets are spread over key versions.
func (s *SecretService) RotationStatus(ctx context.Context, tenantID string) (*models.RotationStatus, error) {
	counts, err := s.store.CountByKeyVersion(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	active := s.crypto.ActiveVersion()
	status := &models.RotationStatus{ActiveVersion: active, Counts: counts}

	for version, n := range counts {
		status.Total += n
		if version < active {
			status.Stale += n
		}
	}

	return status, nil
}

// Reencrypt migrates every secret of the tenant sealed under an older key
// version. Secrets are processed in ID order, one batch at a time, with at
// most ReencryptWorkers migrations in flight. A failing secret is counted
// and skipped; only cancellation or a store error aborts the run.
func (s *SecretService) Reencrypt(ctx context.Context, tenantID string) (*models.ReencryptResult, error) {
	active := s.crypto.ActiveVersion()
	result := &models.ReencryptResult{ActiveVersion: active}

	var mu sync.Mutex
	record := func(outcome migrationOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()

		switch outcome {
		case migrated:
			result.Migrated++
		case lostRace:
			result.Skipped++
		case failed:
			result.Failed++
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, err.Error())
			}
		}
	}

	after := uuid.Nil
	for {
		batch, err := s.store.ListStale(ctx, tenantID, active, after, reencryptBatchSize)
		if err != nil {
			return result, err
		}

		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.ReencryptWorkers)

		for i := range batch {
			sec := &batch[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				record(s.migrateOne(gctx, sec, "reencrypt"))

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return result, err
		}

		after = batch[len(batch)-1].ID
		if len(batch) < reencryptBatchSize {
			break
		}
	}

	s.auditAsync(tenantID, models.AuditKeysReencrypt, "*", map[string]any{
		"active_version": active,
		"migrated":       result.Migrated,
		"skipped":        result.Skipped,
		"failed":         result.Failed,
	})

	s.log.Info("reencryption finished", logrus.Fields{
		"tenant_id": tenantID,
		"migrated":  result.Migrated,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})

	return result, nil
}
