package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

const (
	resultKeyPrefix  = "result:"
	sweepLockPrefix  = "sweep_lock:"
	recentQueriesKey = "recent_queries"
	recentQueriesMax = 100
)

// Cache keeps hot result payloads and coordination keys in Redis.
type Cache struct {
	C   *redis.Client
	ttl time.Duration
}

// NewCache connects and pings. ttl bounds how long cached results live.
func NewCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{C: client, ttl: ttl}, nil
}

func (c *Cache) SetResult(ctx context.Context, res *engine.AggregatedResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.C.Set(ctx, resultKeyPrefix+res.SessionID, payload, c.ttl).Err()
}

func (c *Cache) GetResult(ctx context.Context, sessionID string) (*engine.AggregatedResult, bool, error) {
	payload, err := c.C.Get(ctx, resultKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res engine.AggregatedResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// PushRecentQuery keeps a bounded most-recent-first list of queries.
func (c *Cache) PushRecentQuery(ctx context.Context, query string) error {
	if err := c.C.LPush(ctx, recentQueriesKey, query).Err(); err != nil {
		return err
	}
	return c.C.LTrim(ctx, recentQueriesKey, 0, recentQueriesMax-1).Err()
}

func (c *Cache) RecentQueries(ctx context.Context, n int) ([]string, error) {
	if n <= 0 || n > recentQueriesMax {
		n = recentQueriesMax
	}
	return c.C.LRange(ctx, recentQueriesKey, 0, int64(n-1)).Result()
}

// AcquireSweepLock takes a short exclusive lock so concurrent replicas do not
// sweep the same topic twice.
func (c *Cache) AcquireSweepLock(ctx context.Context, topicID string, ttl time.Duration) (bool, error) {
	return c.C.SetNX(ctx, sweepLockPrefix+topicID, 1, ttl).Result()
}

func (c *Cache) ReleaseSweepLock(ctx context.Context, topicID string) error {
	return c.C.Del(ctx, sweepLockPrefix+topicID).Err()
}
