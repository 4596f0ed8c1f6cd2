// Package security tracks failed API key authentications and locks out keys
// that keep failing.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
	defaultLockout     = 5 * time.Minute
	cleanupInterval    = time.Minute
	maxTrackedKeys     = 10000
)

// GuardConfig sets the lockout policy. Zero fields take the defaults.
type GuardConfig struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// BruteForceGuard counts authentication failures per API key hash. A key that
// fails MaxAttempts times within Window is locked for Lockout. Raw keys are
// never held in memory.
type BruteForceGuard struct {
	cfg     GuardConfig
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewBruteForceGuard creates a guard with the default policy. Its cleanup
// goroutine stops when ctx is cancelled.
func NewBruteForceGuard(ctx context.Context, log *logrus.Logger) *BruteForceGuard {
	return NewBruteForceGuardWithConfig(ctx, log, GuardConfig{})
}

// NewBruteForceGuardWithConfig creates a guard with an explicit policy.
func NewBruteForceGuardWithConfig(ctx context.Context, log *logrus.Logger, cfg GuardConfig) *BruteForceGuard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = defaultLockout
	}

	g := &BruteForceGuard{
		cfg:     cfg,
		records: make(map[string]*failureRecord),
		log:     log,
		now:     time.Now,
	}
	go g.cleanupLoop(ctx)

	return g
}

func keyHash(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// LockedUntil returns when the lockout of apiKey ends, if it is locked.
func (g *BruteForceGuard) LockedUntil(apiKey string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[keyHash(apiKey)]
	if !ok || rec.lockedAt.IsZero() {
		return time.Time{}, false
	}

	until := rec.lockedAt.Add(g.cfg.Lockout)
	if !g.now().Before(until) {
		return time.Time{}, false
	}

	return until, true
}

// IsBlocked reports whether apiKey is currently locked out.
func (g *BruteForceGuard) IsBlocked(apiKey string) bool {
	_, locked := g.LockedUntil(apiKey)
	return locked
}

// RecordFailure counts one failed authentication for apiKey.
func (g *BruteForceGuard) RecordFailure(apiKey string) {
	kh := keyHash(apiKey)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	if !ok || now.Sub(rec.firstFail) > g.cfg.Window {
		g.records[kh] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= g.cfg.MaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("key_hash", kh[:16]).Warn("api key locked out after repeated auth failures")
	}
}

// ResetKey forgets the failures of apiKey after a successful authentication.
func (g *BruteForceGuard) ResetKey(apiKey string) {
	kh := keyHash(apiKey)

	g.mu.Lock()
	delete(g.records, kh)
	g.mu.Unlock()
}

// Tracked returns the number of key hashes currently tracked.
func (g *BruteForceGuard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.records)
}

func (g *BruteForceGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops expired lockouts and stale windows, then trims the oldest
// entries when the table exceeds maxTrackedKeys.
func (g *BruteForceGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, rec := range g.records {
		expired := !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= g.cfg.Lockout
		stale := rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= g.cfg.Window
		if expired || stale {
			delete(g.records, k)
		}
	}

	if excess := len(g.records) - maxTrackedKeys; excess > 0 {
		keys := make([]string, 0, len(g.records))
		for k := range g.records {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return g.records[keys[i]].firstFail.Before(g.records[keys[j]].firstFail)
		})
		for _, k := range keys[:excess] {
			delete(g.records, k)
		}
	}
}
