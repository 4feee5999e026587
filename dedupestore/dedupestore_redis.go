package dedupestore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisDedupePrefix = "dedupe/"

// RedisDedupeStore shares dedup state across processes. Expiry is handled by
// redis key TTLs.
type RedisDedupeStore struct {
	Client *redis.Client
}

func NewRedisDedupeStore(redisURL string) (*RedisDedupeStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisDedupeStore{Client: rdb}, nil
}

func (s *RedisDedupeStore) Check(ctx context.Context, name, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, redisDedupePrefix+name+"/"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisDedupeStore) Set(ctx context.Context, name, key string, ttl time.Duration) error {
	return s.Client.Set(ctx, redisDedupePrefix+name+"/"+key, 1, ttl).Err()
}
