package repositories

import (
	"context"
	"time"
)

type CacheRepositoryInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get возвращает ErrNotFound, если ключа нет.
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key ...string) error
}
