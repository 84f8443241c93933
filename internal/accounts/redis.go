package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldlink/pkg/utils"
)

// RedisSeenIndex deduplicates vendor records across sync runs and
// webhook deliveries using short-lived redis markers. The record store
// stays the source of truth; the index only saves redundant writes.
type RedisSeenIndex struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSeenIndex(rdb *redis.Client, ttl time.Duration) *RedisSeenIndex {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisSeenIndex{rdb: rdb, ttl: ttl}
}

func (s *RedisSeenIndex) Mark(ctx context.Context, tenantID, kind string, vendorIDs []string) ([]bool, error) {
	if tenantID == "" || kind == "" {
		return nil, ErrInvalidArgument
	}
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(vendorIDs))
	for i, id := range vendorIDs {
		keys[i] = fmt.Sprintf("seen:%s:%s:%s", tenantID, kind, id)
	}
	return utils.MarkSeen(ctx, s.rdb, keys, s.ttl)
}
