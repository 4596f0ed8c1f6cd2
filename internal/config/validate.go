package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// validate reports every invalid setting at once so an operator can fix the
// environment in one pass.
func (c *Config) validate() error {
	var result *multierror.Error

	for _, check := range []func() error{
		c.validateParsed,
		c.validateDatabase,
		c.validateNetwork,
		c.validateCORS,
		c.validateEncryption,
	} {
		if err := check(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// validateParsed reports values that could not be read from the environment.
func (c *Config) validateParsed() error {
	var result *multierror.Error
	for _, err := range c.parseErrors {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if !isLoopback(dbHost) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Loopback for local deployments, 0.0.0.0/:: when a container network is the boundary.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	metricsPort, err := strconv.Atoi(c.MetricsPort)
	if err != nil {
		return fmt.Errorf("METRICS_PORT must be a valid integer: %w", err)
	}

	if metricsPort < 1 || metricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}

	if metricsPort == port {
		return fmt.Errorf("METRICS_PORT must differ from PORT")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

// validateEncryption fails fast when the active key cannot be used. Older
// versions are resolved lazily so one damaged retired key does not block startup.
func (c *Config) validateEncryption() error {
	switch c.EncryptionProvider {
	case ProviderEnv:
		raw, ok := c.EncryptionKeys[c.ActiveKeyVersion]
		if !ok {
			return fmt.Errorf("%s%d is required for the active key version", keyEnvPrefix, c.ActiveKeyVersion)
		}

		keyBytes, err := base64.StdEncoding.Strict().DecodeString(raw.Value())
		if err != nil {
			return fmt.Errorf("%s%d must be valid base64: %w", keyEnvPrefix, c.ActiveKeyVersion, err)
		}

		if len(keyBytes) != 32 {
			return fmt.Errorf("%s%d must decode to 32 bytes, got %d", keyEnvPrefix, c.ActiveKeyVersion, len(keyBytes))
		}
	case ProviderVault:
		if c.VaultToken.Value() == "" {
			return fmt.Errorf("VAULT_TOKEN is required when ENCRYPTION_PROVIDER is vault")
		}

		if !isLocalhost(c.VaultAddr) && !strings.HasPrefix(c.VaultAddr, "https://") {
			return fmt.Errorf("VAULT_ADDR must use HTTPS for non-localhost connections")
		}

		if c.VaultKeyPath == "" {
			return fmt.Errorf("VAULT_KEY_PATH must not be empty")
		}
	default:
		return fmt.Errorf("ENCRYPTION_PROVIDER must be 'env' or 'vault', got %q", c.EncryptionProvider)
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}

	return isLoopback(u.Hostname())
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
