package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryClaimCache is an in-process ClaimCache guarded by a mutex. A per-user
// token index makes EvictUser O(tokens held by that user) instead of a full
// scan. Expired entries are dropped lazily on Get.
type MemoryClaimCache struct {
	mu      sync.Mutex
	entries map[string]memoryClaimEntry
	byUser  map[string]map[string]struct{}
	now     func() time.Time
}

type memoryClaimEntry struct {
	claim     Claim
	expiresAt time.Time
}

// MemoryClaimCacheOption configures the cache.
type MemoryClaimCacheOption func(*MemoryClaimCache)

// WithCacheClock overrides the time source; tests use it to control expiry.
func WithCacheClock(fn func() time.Time) MemoryClaimCacheOption {
	return func(c *MemoryClaimCache) {
		if fn != nil {
			c.now = fn
		}
	}
}

func NewMemoryClaimCache(opts ...MemoryClaimCacheOption) *MemoryClaimCache {
	c := &MemoryClaimCache{
		entries: make(map[string]memoryClaimEntry),
		byUser:  make(map[string]map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryClaimCache) Get(_ context.Context, token string) (Claim, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[token]
	if !ok {
		return Claim{}, false
	}
	// Boundary-equal timestamps count as expired; the cache fails closed the
	// same way session expiry does.
	if !c.now().Before(entry.expiresAt) {
		c.removeLocked(token, entry.claim.UserID)
		return Claim{}, false
	}
	return entry.claim, true
}

func (c *MemoryClaimCache) Set(_ context.Context, token string, claim Claim, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[token]; ok && prev.claim.UserID != claim.UserID {
		c.removeLocked(token, prev.claim.UserID)
	}
	c.entries[token] = memoryClaimEntry{claim: claim, expiresAt: c.now().Add(ttl)}
	tokens, ok := c.byUser[claim.UserID]
	if !ok {
		tokens = make(map[string]struct{})
		c.byUser[claim.UserID] = tokens
	}
	tokens[token] = struct{}{}
}

func (c *MemoryClaimCache) EvictToken(_ context.Context, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[token]; ok {
		c.removeLocked(token, entry.claim.UserID)
	}
}

func (c *MemoryClaimCache) EvictUser(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token := range c.byUser[userID] {
		delete(c.entries, token)
	}
	delete(c.byUser, userID)
}

func (c *MemoryClaimCache) removeLocked(token, userID string) {
	delete(c.entries, token)
	if tokens, ok := c.byUser[userID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(c.byUser, userID)
		}
	}
}
