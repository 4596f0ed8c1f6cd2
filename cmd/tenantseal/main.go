// Command tenantseal serves the tenant secret API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/tenantseal/internal/api"
	"github.com/persistorai/tenantseal/internal/config"
	"github.com/persistorai/tenantseal/internal/crypto"
	"github.com/persistorai/tenantseal/internal/db"
	"github.com/persistorai/tenantseal/internal/db/migrations"
	"github.com/persistorai/tenantseal/internal/dbpool"
	"github.com/persistorai/tenantseal/internal/redact"
	"github.com/persistorai/tenantseal/internal/service"
	"github.com/persistorai/tenantseal/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	auditQueueSize  = 1000
)

func main() {
	// A missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()

	log := newLogger()

	if err := run(log); err != nil {
		log.WithError(err).Fatal("tenantseal exited")
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(os.Stdout)
	log.AddHook(redact.Hook{})

	return log
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), int32(cfg.DBMaxConns)) //nolint:gosec // bounded to 2..200 by config.
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return err
	}

	provider, err := crypto.NewProvider(cfg)
	if err != nil {
		return err
	}

	cryptoSvc := crypto.NewService(provider)
	if err := cryptoSvc.CheckActiveKey(ctx); err != nil {
		return fmt.Errorf("active encryption key: %w", err)
	}

	base := store.Base{Pool: pool, Log: log}
	tenants := store.NewTenantStore(pool)
	secrets := store.NewSecretStore(base)
	audits := store.NewAuditStore(base)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	auditWorker := service.NewAuditWorker(audits, log, auditQueueSize)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		auditWorker.Run(workerCtx)
	}()

	secretSvc := service.NewSecretService(secrets, cryptoSvc, auditWorker, log, service.SecretServiceConfig{
		MigrateOnRead:    cfg.MigrateOnRead,
		ReencryptWorkers: cfg.ReencryptWorkers,
	})
	auditSvc := service.NewAuditService(audits, log)

	gin.SetMode(gin.ReleaseMode)

	handler := api.NewRouter(ctx, &api.RouterDeps{
		Log:            log,
		DB:             pool,
		Keys:           cryptoSvc,
		Secrets:        secretSvc,
		KeyOps:         secretSvc,
		Audit:          auditSvc,
		TenantLookup:   tenants,
		CORSOrigins:    cfg.CORSOrigins,
		Version:        config.Version,
		ExpectedSchema: int64(db.SchemaVersion()),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go serve(log, srv, "api", errCh)
	go serve(log, metricsSrv, "metrics", errCh)

	log.WithFields(logrus.Fields{
		"version":            config.Version,
		"provider":           cfg.EncryptionProvider,
		"active_key_version": cryptoSvc.ActiveVersion(),
		"migrate_on_read":    cfg.MigrateOnRead,
		"schema_version":     db.SchemaVersion(),
	}).Info("tenantseal started")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("api server shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("metrics server shutdown")
	}

	// Stop the audit worker only after in-flight requests have enqueued.
	cancelWorkers()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("audit worker did not drain before shutdown deadline")
	}

	log.Info("tenantseal stopped")

	return serveErr
}

func serve(log *logrus.Logger, srv *http.Server, name string, errCh chan<- error) {
	log.WithFields(logrus.Fields{"listener": name, "addr": srv.Addr}).Info("listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("%s server: %w", name, err)
	}
}
