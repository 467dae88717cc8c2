package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisClaimPrefix     = "rollbook:claim:"
	redisUserIndexPrefix = "rollbook:claimidx:"
)

// RedisClaimCache shares cached claims across API replicas. Every claim key
// carries its own TTL, so even when an eviction cannot reach the server the
// claim converges to authoritative state within one TTL window. All failures
// degrade to cache misses; the cache is advisory and never fails a request.
type RedisClaimCache struct {
	client *redis.Client
}

func NewRedisClaimCache(client *redis.Client) *RedisClaimCache {
	return &RedisClaimCache{client: client}
}

type redisClaim struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (c *RedisClaimCache) Get(ctx context.Context, token string) (Claim, bool) {
	data, err := c.client.Get(ctx, redisClaimPrefix+token).Bytes()
	if err != nil {
		return Claim{}, false
	}
	var rc redisClaim
	if err := json.Unmarshal(data, &rc); err != nil {
		return Claim{}, false
	}
	role, err := ParseRole(rc.Role)
	if err != nil {
		return Claim{}, false
	}
	return Claim{UserID: rc.UserID, Role: role}, true
}

func (c *RedisClaimCache) Set(ctx context.Context, token string, claim Claim, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(redisClaim{UserID: claim.UserID, Role: claim.Role.String()})
	if err != nil {
		return
	}
	idxKey := redisUserIndexPrefix + claim.UserID
	pipe := c.client.Pipeline()
	pipe.Set(ctx, redisClaimPrefix+token, data, ttl)
	pipe.SAdd(ctx, idxKey, token)
	// The index only needs to outlive the claims it points at.
	pipe.Expire(ctx, idxKey, ttl+time.Minute)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisClaimCache) EvictToken(ctx context.Context, token string) {
	_ = c.client.Del(ctx, redisClaimPrefix+token).Err()
}

func (c *RedisClaimCache) EvictUser(ctx context.Context, userID string) {
	idxKey := redisUserIndexPrefix + userID
	tokens, err := c.client.SMembers(ctx, idxKey).Result()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, redisClaimPrefix+token)
	}
	keys = append(keys, idxKey)
	_ = c.client.Del(ctx, keys...).Err()
}
