// Package cache 定义最小的键值缓存接口，以及 Redis 与进程内两种实现。
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 表示键不存在或已过期。
var ErrMiss = errors.New("cache: miss")

// Store 的实现必须并发安全。ttl <= 0 表示不过期。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// New 在配置了 REDIS_URL 时返回 Redis 实现，否则回退到进程内实现。
func New(redisURL string) (Store, error) {
	if redisURL == "" {
		return NewMemory(), nil
	}
	return NewRedis(redisURL)
}
