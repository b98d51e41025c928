package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a TTL cache of recently ingested sourceIds so re-runs can
// skip the Postgres existence check for most candidates.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MarkSeen sets a key with a TTL so the next run short-circuits this listing.
func (s *RedisStore) MarkSeen(ctx context.Context, sourceID string, ttl time.Duration) error {
	key := fmt.Sprintf("seen:%s", sourceID)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsSeen checks whether a sourceId was ingested within the TTL window.
func (s *RedisStore) IsSeen(ctx context.Context, sourceID string) (bool, error) {
	key := fmt.Sprintf("seen:%s", sourceID)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
