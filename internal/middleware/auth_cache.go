package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/persistorai/tenantseal/internal/store"
)

const (
	tenantCacheTTL     = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = time.Minute
)

type cachedTenant struct {
	tenantID  string
	negative  bool
	fetchedAt time.Time
}

func (ct cachedTenant) expired(now time.Time) bool {
	ttl := tenantCacheTTL
	if ct.negative {
		ttl = negativeCacheTTL
	}

	return now.Sub(ct.fetchedAt) >= ttl
}

// CachedTenantLookup wraps a TenantLookup with a bounded in-memory cache
// keyed by the API key hash. Unknown keys are cached briefly; backend
// failures are never cached. Concurrent misses for one key share a lookup.
type CachedTenantLookup struct {
	inner TenantLookup
	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedTenant
}

// NewCachedTenantLookup creates the cache. ctx bounds its eviction goroutine.
func NewCachedTenantLookup(ctx context.Context, inner TenantLookup) *CachedTenantLookup {
	c := &CachedTenantLookup{
		inner: inner,
		cache: make(map[string]cachedTenant),
	}
	go c.evictLoop(ctx)

	return c
}

func (c *CachedTenantLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.evictExpired(now)
			c.mu.Unlock()
		}
	}
}

// evictExpired drops expired entries. Caller must hold c.mu.
func (c *CachedTenantLookup) evictExpired(now time.Time) {
	for k, v := range c.cache {
		if v.expired(now) {
			delete(c.cache, k)
		}
	}
}

// GetTenantByAPIKey returns the cached tenant ID or asks the inner lookup.
func (c *CachedTenantLookup) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	hk := store.HashAPIKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	c.mu.RUnlock()

	if ok && !entry.expired(time.Now()) {
		if entry.negative {
			return "", store.ErrTenantNotFound
		}
		return entry.tenantID, nil
	}

	v, err, _ := c.group.Do(hk, func() (any, error) {
		tenantID, err := c.inner.GetTenantByAPIKey(ctx, apiKey)
		switch {
		case errors.Is(err, store.ErrTenantNotFound):
			c.put(hk, cachedTenant{negative: true, fetchedAt: time.Now()})
			return "", err
		case err != nil:
			return "", err
		}

		c.put(hk, cachedTenant{tenantID: tenantID, fetchedAt: time.Now()})
		return tenantID, nil
	})
	if err != nil {
		return "", err
	}

	tenantID, _ := v.(string)
	return tenantID, nil
}

func (c *CachedTenantLookup) put(hk string, entry cachedTenant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		c.evictExpired(time.Now())
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}

	c.cache[hk] = entry
}

// Len returns the number of cached entries.
func (c *CachedTenantLookup) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}
