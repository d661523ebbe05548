package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RequestDeduplicator гасит повторные нажатия одного и того же пользователя.
type RequestDeduplicator struct {
	locks sync.Map
	now   func() time.Time
}

func NewRequestDeduplicator() *RequestDeduplicator {
	return &RequestDeduplicator{now: time.Now}
}

func (d *RequestDeduplicator) TryAcquire(userID int64, keySuffix string, ttl time.Duration) bool {
	key := fmt.Sprintf("%d_%s", userID, keySuffix)
	now := d.now()

	if val, exists := d.locks.Load(key); exists {
		expiry := val.(time.Time)
		if now.Before(expiry) {
			return false
		}
	}

	d.locks.Store(key, now.Add(ttl))
	return true
}

func (d *RequestDeduplicator) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := d.now()
			d.locks.Range(func(key, value interface{}) bool {
				if now.After(value.(time.Time)) {
					d.locks.Delete(key)
				}
				return true
			})
		}
	}
}
