// Package metrics defines Prometheus metrics for tenantseal.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantseal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantseal_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantseal_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	// CryptoOps counts encrypt, decrypt and migrate calls by outcome.
	CryptoOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantseal_crypto_operations_total",
			Help: "Envelope operations by op and result",
		},
		[]string{"op", "result"},
	)

	CryptoDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantseal_crypto_operation_duration_seconds",
			Help:    "Envelope operation duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op"},
	)

	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantseal_key_migrations_total",
			Help: "Blob re-encryptions under the active key by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ActiveKeyVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantseal_active_key_version",
			Help: "Key version used for new encryptions",
		},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantseal_audit_queue_depth",
			Help: "Current audit queue depth",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		CryptoOps, CryptoDuration, MigrationsTotal,
		ActiveKeyVersion, AuditQueueDepth,
	)
}
