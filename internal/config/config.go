// Package config provides environment-driven configuration for tenantseal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Encryption providers.
const (
	ProviderEnv   = "env"
	ProviderVault = "vault"
)

// keyEnvPrefix is the prefix of the per-version key variables (ENCRYPTION_KEY_V1, ...).
const keyEnvPrefix = "ENCRYPTION_KEY_V"

// Config holds all application configuration values.
type Config struct {
	DatabaseURL      Secret
	Port             string
	ListenHost       string
	MetricsPort      string
	CORSOrigins      []string
	LogLevel         string
	DBMaxConns       int
	ReencryptWorkers int

	// EncryptionProvider selects where key material comes from ("env" or "vault").
	EncryptionProvider string
	// EncryptionKeys maps a key version to its base64-encoded 32-byte key.
	EncryptionKeys map[int]Secret
	// ActiveKeyVersion is the version used for new encryptions.
	ActiveKeyVersion int
	// MigrateOnRead re-encrypts stale blobs under the active key when they are read.
	MigrateOnRead bool

	VaultAddr    string
	VaultToken   Secret
	VaultKeyPath string

	// parseErrors holds problems found while reading the environment that
	// validation reports alongside everything else.
	parseErrors []error
}

// Load reads the full server configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadEncryption reads configuration for processes that only need key
// material (the CLI). Database and listener settings are not validated.
func LoadEncryption() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}

	var result *multierror.Error
	for _, check := range []func() error{cfg.validateParsed, cfg.validateEncryption} {
		if err := check(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func read() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        Secret(envOrDefault("DATABASE_URL", "")),
		Port:               envOrDefault("PORT", "3040"),
		ListenHost:         envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort:        envOrDefault("METRICS_PORT", "9092"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		EncryptionProvider: envOrDefault("ENCRYPTION_PROVIDER", ProviderEnv),
		VaultAddr:          envOrDefault("VAULT_ADDR", "http://127.0.0.1:8200"),
		VaultToken:         Secret(envOrDefault("VAULT_TOKEN", "")),
		VaultKeyPath:       strings.Trim(envOrDefault("VAULT_KEY_PATH", "tenantseal/keys"), "/"),
	}

	cfg.EncryptionKeys, cfg.parseErrors = readKeys(os.Environ())

	migrate := envOrDefault("MIGRATE_ON_READ", "true")
	migrateOnRead, err := strconv.ParseBool(migrate)
	if err != nil {
		cfg.parseErrors = append(cfg.parseErrors, fmt.Errorf("MIGRATE_ON_READ must be a boolean, got %q", migrate))
	}
	cfg.MigrateOnRead = migrateOnRead

	active, err := strconv.Atoi(envOrDefault("ENCRYPTION_ACTIVE_KEY_VERSION", "1"))
	if err != nil || active < 1 {
		return nil, fmt.Errorf("ENCRYPTION_ACTIVE_KEY_VERSION must be a positive integer")
	}
	cfg.ActiveKeyVersion = active

	maxConns, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "10"))
	if err != nil || maxConns < 2 || maxConns > 200 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be an integer between 2 and 200")
	}
	cfg.DBMaxConns = maxConns

	workers, err := strconv.Atoi(envOrDefault("REENCRYPT_WORKERS", "4"))
	if err != nil || workers < 1 || workers > 32 {
		return nil, fmt.Errorf("REENCRYPT_WORKERS must be an integer between 1 and 32")
	}
	cfg.ReencryptWorkers = workers

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

// readKeys collects every ENCRYPTION_KEY_V{n} variable from environ.
// Variables whose suffix is not a number are ignored. A numeric suffix must
// be the canonical form of a positive version, so V01 and V+1 cannot shadow V1.
func readKeys(environ []string) (map[int]Secret, []error) {
	keys := make(map[int]Secret)
	var errs []error

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, keyEnvPrefix) || value == "" {
			continue
		}

		suffix := strings.TrimPrefix(name, keyEnvPrefix)
		version, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}

		if version < 1 || strconv.Itoa(version) != suffix {
			errs = append(errs, fmt.Errorf("%s: version suffix must be a positive integer without sign or leading zeros", name))
			continue
		}

		keys[version] = Secret(value)
	}

	return keys, errs
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
