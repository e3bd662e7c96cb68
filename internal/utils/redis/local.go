package redis

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// local is an in-process stand-in for Redis, bounded by entry count.
type local struct {
	cache *lru.Cache[string, localEntry]
	now   func() time.Time
}

// Local returns a cache that keeps up to size entries in process memory.
func Local(size int) (Redis, error) {
	cache, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, err
	}
	return &local{cache: cache, now: time.Now}, nil
}

func (l *local) Set(_ context.Context, key string, value any, expireTime time.Duration) (bool, error) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	entry := localEntry{value: jsonData}
	if expireTime > 0 {
		entry.expiresAt = l.now().Add(expireTime)
	}
	l.cache.Add(key, entry)
	return true, nil
}

func (l *local) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := l.cache.Get(key)
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !l.now().Before(entry.expiresAt) {
		l.cache.Remove(key)
		return nil, nil
	}
	return entry.value, nil
}

func (l *local) Delete(_ context.Context, key string) (bool, error) {
	return l.cache.Remove(key), nil
}
