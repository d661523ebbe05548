package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
)

// ViewStoreInterface - кто сейчас показывает заказ. Хранилище не обязано переживать рестарт.
type ViewStoreInterface interface {
	// Put заменяет прежний handle этого зрителя.
	Put(ctx context.Context, orderID int64, viewerID string, handle entities.NotificationHandle) error
	Delete(ctx context.Context, orderID int64, viewerID string) error
	List(ctx context.Context, orderID int64) ([]entities.NotificationTarget, error)
}

type memoryViewStore struct {
	mu    sync.RWMutex
	views map[int64]map[string]entities.NotificationHandle
}

func NewMemoryViewStore() ViewStoreInterface {
	return &memoryViewStore{views: make(map[int64]map[string]entities.NotificationHandle)}
}

func (s *memoryViewStore) Put(_ context.Context, orderID int64, viewerID string, handle entities.NotificationHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewers, ok := s.views[orderID]
	if !ok {
		viewers = make(map[string]entities.NotificationHandle)
		s.views[orderID] = viewers
	}
	viewers[viewerID] = handle
	return nil
}

func (s *memoryViewStore) Delete(_ context.Context, orderID int64, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewers, ok := s.views[orderID]
	if !ok {
		return nil
	}
	delete(viewers, viewerID)
	if len(viewers) == 0 {
		delete(s.views, orderID)
	}
	return nil
}

func (s *memoryViewStore) List(_ context.Context, orderID int64) ([]entities.NotificationTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	viewers := s.views[orderID]
	targets := make([]entities.NotificationTarget, 0, len(viewers))
	for viewerID, handle := range viewers {
		targets = append(targets, entities.NotificationTarget{OrderID: orderID, ViewerID: viewerID, Handle: handle})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ViewerID < targets[j].ViewerID })
	return targets, nil
}
