package lockreg

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLocker is the slice of go-redis the registry uses. *redis.Client
// satisfies it; tests substitute a fake.
type redisLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRegistry is the multi-process variant: the same skip semantics backed
// by SET NX. A TTL bounds each hold so a crashed holder cannot wedge its
// conversation until manual cleanup.
type RedisRegistry struct {
	rdb    redisLocker
	prefix string
	ttl    time.Duration
}

func NewRedisRegistry(rdb redisLocker, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisRegistry{rdb: rdb, prefix: "lock:", ttl: ttl}
}

func (r *RedisRegistry) AcquireOrSkip(ctx context.Context, key string, op func() error) (bool, error) {
	full := r.prefix + key
	ok, err := r.rdb.SetNX(ctx, full, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire failed for %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	defer func() {
		// Release is best-effort; the TTL is the backstop.
		_ = r.rdb.Del(context.WithoutCancel(ctx), full).Err()
	}()

	return true, op()
}

func (r *RedisRegistry) IsLocked(ctx context.Context, key string) bool {
	n, err := r.rdb.Exists(ctx, r.prefix+key).Result()
	return err == nil && n > 0
}
