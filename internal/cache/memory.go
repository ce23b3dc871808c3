package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval 是后台清理过期键的周期。
const DefaultCleanupInterval = time.Minute

// Memory 是单进程部署使用的缓存。过期键读取时不可见，并由后台 janitor 定期清除。
type Memory struct {
	c *gocache.Cache
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return NewMemoryWithCleanup(DefaultCleanupInterval)
}

func NewMemoryWithCleanup(interval time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, interval)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrMiss
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrMiss
	}
	return s, nil
}

// Set ttl <= 0 表示永不过期。
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

// Len 返回当前持有的键数量，包括已过期但尚未被清理的键。
func (m *Memory) Len() int { return m.c.ItemCount() }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
