package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// ConsumeOnce atomically consumes a single-use marker.
// Returns true exactly once per key within the TTL window.
//
// Used for OAuth state values: the first callback carrying a state wins,
// replays within the TTL are rejected.
func ConsumeOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return false, fmt.Errorf("key is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

var markSeenScript = redis.NewScript(`
-- KEYS[...] = seen-marker keys
-- ARGV[1]   = ttl_ms (int)
--
-- For each key: set if absent, report 1 if it was new, 0 if already seen.
local out = {}
for i, key in ipairs(KEYS) do
  local created = redis.call('SET', key, '1', 'NX', 'PX', ARGV[1])
  if created then
    out[i] = 1
  else
    out[i] = 0
  end
end
return out
`)

// MarkSeen marks a batch of vendor-record keys as ingested.
// The i-th result is true if the key was NOT previously seen (net-new).
//
// Safety properties:
// - Atomic per batch using Lua.
// - TTL bounds the index; the persistence layer remains the source of truth.
func MarkSeen(ctx context.Context, rdb *redis.Client, keys []string, ttl time.Duration) ([]bool, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be > 0")
	}

	res, err := markSeenScript.Run(ctx, rdb, keys, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(keys))
	for i := range out {
		if i < len(res) {
			n, _ := res[i].(int64)
			out[i] = n == 1
		}
	}
	return out, nil
}
