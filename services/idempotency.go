package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard rejects replays of the same action occurrence. Callers
// supply a key per distinct occurrence (e.g. "task:123:2024-01-07"); the
// ledger itself never deduplicates by content.
type IdempotencyGuard interface {
	// Register returns true the first time a (userID, key) pair is seen
	// within the TTL window.
	Register(ctx context.Context, userID, key string, ttl time.Duration) (bool, error)
}

type redisIdempotencyGuard struct {
	client *redis.Client
}

var _ IdempotencyGuard = (*redisIdempotencyGuard)(nil)

// NewRedisIdempotencyGuard backs the guard with SETNX + TTL, so replays are
// caught across service replicas and keys expire on their own.
func NewRedisIdempotencyGuard(client *redis.Client) IdempotencyGuard {
	return &redisIdempotencyGuard{client: client}
}

func (g *redisIdempotencyGuard) Register(ctx context.Context, userID, key string, ttl time.Duration) (bool, error) {
	redisKey := fmt.Sprintf("idem:%s:%s", userID, key)
	first, err := g.client.SetNX(ctx, redisKey, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency check for %s: %w", redisKey, err)
	}
	return first, nil
}

// MemoryIdempotencyGuard is the in-process fallback for tests and dev runs
// without redis. Expired keys are pruned lazily on access.
type MemoryIdempotencyGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry
}

var _ IdempotencyGuard = (*MemoryIdempotencyGuard)(nil)

func NewMemoryIdempotencyGuard() *MemoryIdempotencyGuard {
	return &MemoryIdempotencyGuard{seen: make(map[string]time.Time)}
}

func (g *MemoryIdempotencyGuard) Register(_ context.Context, userID, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for k, expiry := range g.seen {
		if expiry.Before(now) {
			delete(g.seen, k)
		}
	}

	composite := userID + ":" + key
	if _, exists := g.seen[composite]; exists {
		return false, nil
	}
	g.seen[composite] = now.Add(ttl)
	return true, nil
}
