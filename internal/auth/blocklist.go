package auth

import (
	"context"
	"errors"
	"time"

	"moringadaily/internal/cache"
)

// Blocklist 记录已登出的 access token id，条目在 token 自然过期时一并过期。
// 由 main 创建并注入 Guard，不使用包级全局变量。
type Blocklist struct {
	store cache.Store
}

func NewBlocklist(store cache.Store) *Blocklist {
	return &Blocklist{store: store}
}

func blockKey(jti string) string { return "auth:revoked:" + jti }

// Revoke 把 jti 加入黑名单直到 expiresAt。已过期的 token 无需记录。
func (b *Blocklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, blockKey(jti), "1", ttl)
}

// Revoked 在缓存不可用时返回错误，由调用方决定是否放行。
func (b *Blocklist) Revoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := b.store.Get(ctx, blockKey(jti))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
