package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSessionTimeout bounds a session's lifetime when the configuration
// does not say otherwise.
const DefaultSessionTimeout = 30 * time.Minute

// ErrSessionExpired covers both an unknown session key and one whose entry
// has outlived the configured timeout; callers cannot tell the two apart.
var ErrSessionExpired = errors.New("auth: session expired or unknown")

// TokenStore maps opaque session keys to auth tokens with bounded lifetime.
// Implementations must be safe for arbitrarily many concurrent callers.
type TokenStore interface {
	// Put records key with the current time as issue time, overwriting
	// any prior mapping for key.
	Put(ctx context.Context, key string, token AuthToken) error
	// Get returns the token for key while it is still live, otherwise
	// ErrSessionExpired.
	Get(ctx context.Context, key string) (AuthToken, error)
}

type sessionEntry struct {
	token    AuthToken
	issuedAt time.Time
}

// TokenTable is the in-memory TokenStore. Expiry is checked lazily on
// lookup; Sweep exists only to bound memory held by abandoned sessions.
type TokenTable struct {
	mu      sync.RWMutex
	entries map[string]sessionEntry
	timeout time.Duration
	now     func() time.Time
}

// NewTokenTable builds a table expiring entries after timeout. A
// non-positive timeout falls back to DefaultSessionTimeout.
func NewTokenTable(timeout time.Duration) *TokenTable {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &TokenTable{
		entries: make(map[string]sessionEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

// Put records the mapping, stamping it with the current time.
func (t *TokenTable) Put(_ context.Context, key string, token AuthToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = sessionEntry{token: token, issuedAt: t.now()}
	return nil
}

// Get returns the live token for key. A stale entry is removed on the way
// out so repeated lookups do not keep dead sessions around.
func (t *TokenTable) Get(_ context.Context, key string) (AuthToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return AuthToken{}, ErrSessionExpired
	}
	if t.now().Sub(entry.issuedAt) >= t.timeout {
		delete(t.entries, key)
		return AuthToken{}, ErrSessionExpired
	}
	return entry.token, nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (t *TokenTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	dropped := 0
	for key, entry := range t.entries {
		if now.Sub(entry.issuedAt) >= t.timeout {
			delete(t.entries, key)
			dropped++
		}
	}
	return dropped
}

// SweepEvery runs Sweep on the given interval until ctx is done. Correctness
// never depends on it; lazy expiry in Get already hides stale entries.
func (t *TokenTable) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Len returns the number of entries currently held, live or not.
func (t *TokenTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
