package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

// redisViewStore хранит зрителей заказа в HASH order_views:<id>, поле - viewerID.
// Ключ живёт ttl с момента последней регистрации.
type redisViewStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisViewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) ViewStoreInterface {
	return &redisViewStore{client: client, ttl: ttl, logger: logger}
}

func viewsKey(orderID int64) string {
	return fmt.Sprintf(constants.CacheKeyOrderViews, orderID)
}

func (s *redisViewStore) Put(ctx context.Context, orderID int64, viewerID string, handle entities.NotificationHandle) error {
	data, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("ошибка сериализации handle: %w", err)
	}
	key := viewsKey(orderID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, viewerID, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *redisViewStore) Delete(ctx context.Context, orderID int64, viewerID string) error {
	return s.client.HDel(ctx, viewsKey(orderID), viewerID).Err()
}

func (s *redisViewStore) List(ctx context.Context, orderID int64) ([]entities.NotificationTarget, error) {
	raw, err := s.client.HGetAll(ctx, viewsKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	targets := make([]entities.NotificationTarget, 0, len(raw))
	for viewerID, value := range raw {
		var handle entities.NotificationHandle
		if err := json.Unmarshal([]byte(value), &handle); err != nil {
			s.logger.Warn("Битый handle зрителя, пропускаем",
				zap.Int64("orderID", orderID), zap.String("viewerID", viewerID), zap.Error(err))
			continue
		}
		targets = append(targets, entities.NotificationTarget{OrderID: orderID, ViewerID: viewerID, Handle: handle})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ViewerID < targets[j].ViewerID })
	return targets, nil
}
