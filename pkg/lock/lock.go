// Package lock provides short-lived Redis locks keyed on resources.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyResource is lock:resource:{kind}:{id}.
	KeyResource = "lock:resource:%s:%s"

	DefaultTTL = 10 * time.Second
)

var ErrNotAcquired = errors.New("lock: held by another owner")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func ResourceKey(kind, id string) string {
	return fmt.Sprintf(KeyResource, kind, id)
}

type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

// Acquire takes every key or none. Keys are taken in sorted order so two callers
// asking for overlapping sets cannot deadlock each other.
func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	token := uuid.NewString()

	var held []string
	release := func() {
		// detached so a cancelled request still frees its keys
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			_ = releaseScript.Run(ctx, l.rdb, []string{k}, token).Err()
		}
	}

	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", k, err)
		}
		if !ok {
			release()
			return nil, ErrNotAcquired
		}
		held = append(held, k)
	}
	return release, nil
}
