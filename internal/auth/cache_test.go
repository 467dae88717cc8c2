package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClaimCacheSetGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryClaimCache(WithCacheClock(func() time.Time { return now }))
	ctx := context.Background()

	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleUser}, 5*time.Minute)

	claim, ok := cache.Get(ctx, "token-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if claim.UserID != "u1" || claim.Role != RoleUser {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	if _, ok := cache.Get(ctx, "token-2"); ok {
		t.Fatal("expected miss for unknown token")
	}
}

func TestMemoryClaimCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryClaimCache(WithCacheClock(func() time.Time { return now }))
	ctx := context.Background()

	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleAdmin}, 5*time.Minute)

	// One nanosecond before expiry is still a hit.
	now = now.Add(5*time.Minute - time.Nanosecond)
	if _, ok := cache.Get(ctx, "token-1"); !ok {
		t.Fatal("expected hit just before expiry")
	}

	// Boundary-equal is a miss: the cache fails closed.
	now = now.Add(time.Nanosecond)
	if _, ok := cache.Get(ctx, "token-1"); ok {
		t.Fatal("expected miss at exact expiry")
	}
}

func TestMemoryClaimCacheEvictUser(t *testing.T) {
	cache := NewMemoryClaimCache()
	ctx := context.Background()

	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleUser}, time.Minute)
	cache.Set(ctx, "token-2", Claim{UserID: "u1", Role: RoleUser}, time.Minute)
	cache.Set(ctx, "token-3", Claim{UserID: "u2", Role: RoleAdmin}, time.Minute)

	cache.EvictUser(ctx, "u1")

	if _, ok := cache.Get(ctx, "token-1"); ok {
		t.Fatal("token-1 should be evicted")
	}
	if _, ok := cache.Get(ctx, "token-2"); ok {
		t.Fatal("token-2 should be evicted")
	}
	if _, ok := cache.Get(ctx, "token-3"); !ok {
		t.Fatal("token-3 belongs to another user and must survive")
	}
}

func TestMemoryClaimCacheEvictToken(t *testing.T) {
	cache := NewMemoryClaimCache()
	ctx := context.Background()

	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleUser}, time.Minute)
	cache.EvictToken(ctx, "token-1")
	if _, ok := cache.Get(ctx, "token-1"); ok {
		t.Fatal("token-1 should be evicted")
	}
	// Evicting an absent token is a no-op.
	cache.EvictToken(ctx, "token-unknown")
}

func TestMemoryClaimCacheIdempotentWrites(t *testing.T) {
	cache := NewMemoryClaimCache()
	ctx := context.Background()

	// Two racers writing the same derived value is safe; the last write wins
	// and the claim stays consistent.
	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleUser}, time.Minute)
	cache.Set(ctx, "token-1", Claim{UserID: "u1", Role: RoleUser}, time.Minute)

	claim, ok := cache.Get(ctx, "token-1")
	if !ok || claim.UserID != "u1" {
		t.Fatalf("unexpected claim after duplicate writes: %+v ok=%v", claim, ok)
	}
}
