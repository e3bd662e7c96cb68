package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	re "github.com/redis/go-redis/v9"
)

// Redis is the small JSON cache the service keeps derived views in.
type Redis interface {
	Set(ctx context.Context, key string, value any, expireTime time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

type redis struct {
	redis *re.Client
}

// New wraps client. A nil client yields the no-op cache.
func New(client *re.Client) Redis {
	if client == nil {
		return Dummy()
	}
	return &redis{redis: client}
}

func (r *redis) Set(ctx context.Context, key string, value any, expireTime time.Duration) (bool, error) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if err := r.redis.Set(ctx, key, jsonData, expireTime).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns nil, nil on a cache miss.
func (r *redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.redis.Get(ctx, key).Bytes()
	if errors.Is(err, re.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *redis) Delete(ctx context.Context, key string) (bool, error) {
	result, err := r.redis.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
