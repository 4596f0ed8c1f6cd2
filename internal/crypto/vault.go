package crypto

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/persistorai/tenantseal/internal/config"
)

// keyCacheTTL is how long a cached key is valid before re-fetching from Vault.
const keyCacheTTL = 15 * time.Minute

// vaultMaxRetries bounds retries of transient Vault failures (5xx, transport).
const vaultMaxRetries = 3

// cachedKey stores a key alongside its fetch timestamp for TTL expiration.
type cachedKey struct {
	key       []byte
	fetchedAt time.Time
}

// VaultProvider fetches versioned encryption keys from a HashiCorp Vault KV v2
// mount. Key version n lives at secret/data/<path>/v<n> in field encryption_key.
type VaultProvider struct {
	addr    string
	token   config.Secret
	path    string
	active  int
	client  *http.Client
	cache   sync.Map
	group   singleflight.Group
	timeNow func() time.Time

	retryInterval time.Duration
}

// NewVaultProvider creates a VaultProvider. The active version comes from
// configuration, never from Vault, so rotation stays a deployment decision.
func NewVaultProvider(addr string, token config.Secret, path string, active int) *VaultProvider {
	if active < 1 {
		active = 1
	}

	return &VaultProvider{
		addr:   addr,
		token:  token,
		path:   path,
		active: active,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		timeNow:       time.Now,
		retryInterval: 200 * time.Millisecond,
	}
}

// ActiveVersion returns the configured active key version.
func (p *VaultProvider) ActiveVersion() int {
	return p.active
}

// GetKey returns the cached key for version, fetching from Vault on first access.
// Cached keys expire after keyCacheTTL and are re-fetched.
func (p *VaultProvider) GetKey(ctx context.Context, version int) ([]byte, error) {
	if version < 1 {
		return nil, keyMissing(version, "version must be positive")
	}

	if key, ok := p.cached(version); ok {
		return key, nil
	}

	val, err, _ := p.group.Do(strconv.Itoa(version), func() (any, error) {
		// Double-check cache after winning the singleflight race.
		if key, ok := p.cached(version); ok {
			return key, nil
		}

		k, err := p.fetchWithRetry(ctx, version)
		if err != nil {
			return nil, err
		}

		p.cache.Store(version, cachedKey{key: append([]byte(nil), k...), fetchedAt: p.timeNow()})
		return k, nil
	})
	if err != nil {
		return nil, err
	}

	key, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("crypto/vault: unexpected singleflight result type %T", val)
	}

	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// cached returns a copy of an unexpired cache entry.
func (p *VaultProvider) cached(version int) ([]byte, bool) {
	v, ok := p.cache.Load(version)
	if !ok {
		return nil, false
	}

	entry, valid := v.(cachedKey)
	if !valid || p.timeNow().Sub(entry.fetchedAt) >= keyCacheTTL {
		p.cache.Delete(version)
		return nil, false
	}

	out := make([]byte, len(entry.key))
	copy(out, entry.key)
	return out, true
}

// fetchWithRetry retries transient failures with exponential backoff. Codec
// errors and non-retryable statuses are returned on the first attempt.
func (p *VaultProvider) fetchWithRetry(ctx context.Context, version int) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryInterval
	b.MaxInterval = 4 * p.retryInterval

	var key []byte

	err := backoff.Retry(func() error {
		k, err := p.fetchKey(ctx, version)
		if err != nil {
			if KindOf(err) != KindUnknown || !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		key = k
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, vaultMaxRetries), ctx))
	if err != nil {
		return nil, err
	}

	return key, nil
}

// statusError is a non-200 response from Vault.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("crypto/vault: unexpected status %d", e.code)
}

// isTransient reports whether a fetch error is worth retrying.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
	}

	return true
}

func (p *VaultProvider) fetchKey(ctx context.Context, version int) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/v1/secret/data/%s/v%d", p.addr, p.path, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: create request: %w", err)
	}

	req.Header.Set("X-Vault-Token", p.token.Value())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crypto/vault: request failed: %w", err)
	}
	defer resp.Body.Close()

	// Limit all body reads to 1 MB to prevent memory exhaustion.
	limitedBody := io.LimitReader(resp.Body, 1<<20)

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, limitedBody)
		return nil, keyMissing(version, fmt.Sprintf("not found in vault at secret/%s/v%d", p.path, version))
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, limitedBody)
		return nil, &statusError{code: resp.StatusCode}
	}

	var result struct {
		Data struct {
			Data map[string]string `json:"data"`
		} `json:"data"`
	}

	if err := json.NewDecoder(limitedBody).Decode(&result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("crypto/vault: decode response: %w", err))
	}

	b64Key, ok := result.Data.Data["encryption_key"]
	if !ok || b64Key == "" {
		return nil, keyMissing(version, "encryption_key field missing in vault")
	}

	key, err := decodeB64(b64Key)
	if err != nil {
		return nil, keyMissing(version, "not valid base64")
	}

	if len(key) != keySize {
		return nil, keyMissing(version, "key must decode to 32 bytes")
	}

	return key, nil
}
