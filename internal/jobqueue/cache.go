package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/logging"
)

// guardTTL is the short TTL named in SPEC_FULL §4.12; the guard cache is a
// pure optimization and a stale/missing entry never causes a missed
// enqueue, since HasPending caches only "nothing pending" answers and
// always falls back to the RS query on a miss.
const guardTTL = 30 * time.Second

// RedisGuardCache is the optional redis/go-redis/v9-backed cache in front
// of the §4.2 idempotency guard query.
type RedisGuardCache struct {
	client *redis.Client
}

// NewRedisGuardCache dials redis at addr (a redis:// URL). Returns nil,nil
// when addr is empty, so callers can pass the result straight to
// jobqueue.NewQueue without a branch.
func NewRedisGuardCache(addr string) (*RedisGuardCache, error) {
	if addr == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &RedisGuardCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisGuardCache) get(ctx context.Context, key string) (hit bool, found bool) {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("jobqueue guard cache read failed, falling through to RS")
		}
		return false, false
	}
	return v == "1", true
}

func (c *RedisGuardCache) set(ctx context.Context, key string, hit bool) {
	val := "0"
	if hit {
		val = "1"
	}
	if err := c.client.Set(ctx, key, val, guardTTL).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("jobqueue guard cache write failed")
	}
}

func (c *RedisGuardCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("jobqueue guard cache invalidate failed")
	}
}

func guardKey(workspaceID string, jobType domain.JobType, documentID string) string {
	return fmt.Sprintf("jobguard:%s:%s:%s", workspaceID, jobType, documentID)
}
