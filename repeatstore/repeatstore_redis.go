package repeatstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisRepeatCountPrefix   = "repeat/cnt/"
	redisRepeatChannelPrefix = "repeat/chs/"
)

// RedisRepeatStore shares repeat tracking across processes. The window is
// enforced with key TTLs set only at key creation, which approximates the
// reset-on-expiry semantics of the memory backend.
type RedisRepeatStore struct {
	Client *redis.Client
}

func NewRedisRepeatStore(redisURL string) (*RedisRepeatStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisRepeatStore{Client: rdb}, nil
}

func (s *RedisRepeatStore) Bump(ctx context.Context, authorID int64, signature string, channelID int64, window time.Duration) (int, int, error) {
	key := fmt.Sprintf("%d/%s", authorID, signature)
	cntKey := redisRepeatCountPrefix + key
	chsKey := redisRepeatChannelPrefix + key

	// single redis round-trip
	multi := s.Client.TxPipeline()
	cnt := multi.Incr(ctx, cntKey)
	multi.ExpireNX(ctx, cntKey, window)
	multi.SAdd(ctx, chsKey, channelID)
	multi.ExpireNX(ctx, chsKey, window)
	chs := multi.SCard(ctx, chsKey)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return int(cnt.Val()), int(chs.Val()), nil
}
