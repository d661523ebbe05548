// Package testutil - in-memory реализации репозиториев и внешних сервисов для тестов.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

// MemoryStore - заказы, журнал и суточные запуски в памяти.
// Транзакции сериализуются, при ошибке состояние откатывается к снимку.
type MemoryStore struct {
	txMu sync.Mutex

	mu        sync.Mutex
	orders    map[int64]*entities.Order
	history   []entities.StatusHistoryEntry
	runs      map[string]string
	historyID int64

	// Now - часы для created_at/updated_at.
	Now func() time.Time
	// FailTx, если задан, вызывается в начале каждой транзакции.
	FailTx func() error
	// AfterListDue, если задан, вызывается после выборки сработавших напоминаний.
	AfterListDue func()
}

var (
	_ repositories.OrderRepositoryInterface        = (*MemoryStore)(nil)
	_ repositories.OrderHistoryRepositoryInterface = (*MemoryStore)(nil)
	_ repositories.TxManagerInterface              = (*MemoryStore)(nil)
	_ repositories.SchedulerRunRepositoryInterface = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]*entities.Order),
		runs:   make(map[string]string),
		Now:    time.Now,
	}
}

func cloneOrder(o *entities.Order) *entities.Order {
	c := *o
	c.RawJSON = append([]byte(nil), o.RawJSON...)
	return &c
}

// Put кладёт заказ как есть, без записи в журнал.
func (s *MemoryStore) Put(order *entities.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.Now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	s.orders[order.ID] = cloneOrder(order)
}

// Order - текущее состояние заказа или nil.
func (s *MemoryStore) Order(id int64) *entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// History - записи журнала заказа в порядке добавления.
func (s *MemoryStore) History(orderID int64) []entities.StatusHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []entities.StatusHistoryEntry
	for _, h := range s.history {
		if h.OrderID == orderID {
			res = append(res, h)
		}
	}
	return res
}

type snapshot struct {
	orders    map[int64]*entities.Order
	history   []entities.StatusHistoryEntry
	runs      map[string]string
	historyID int64
}

func (s *MemoryStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		orders:    make(map[int64]*entities.Order, len(s.orders)),
		history:   append([]entities.StatusHistoryEntry(nil), s.history...),
		runs:      make(map[string]string, len(s.runs)),
		historyID: s.historyID,
	}
	for id, o := range s.orders {
		snap.orders[id] = cloneOrder(o)
	}
	for k, v := range s.runs {
		snap.runs[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders, s.history, s.runs, s.historyID = snap.orders, snap.history, snap.runs, snap.historyID
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailTx != nil {
		if err := s.FailTx(); err != nil {
			return err
		}
	}

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(nil)
}

// ==================== ЗАКАЗЫ ====================

func (s *MemoryStore) InsertIfAbsent(_ context.Context, _ pgx.Tx, order *entities.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return false, nil
	}
	now := s.Now()
	order.IsIngested = true
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = cloneOrder(order)
	return true, nil
}

func (s *MemoryStore) find(id int64) (*entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) FindByID(_ context.Context, _ pgx.Tx, id int64) (*entities.Order, error) {
	return s.find(id)
}

func (s *MemoryStore) FindForUpdate(_ context.Context, _ pgx.Tx, id int64) (*entities.Order, error) {
	return s.find(id)
}

func (s *MemoryStore) update(id int64, apply func(o *entities.Order)) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return time.Time{}, apperrors.ErrNotFound
	}
	apply(o)
	o.UpdatedAt = s.Now()
	return o.UpdatedAt, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, _ pgx.Tx, order *entities.Order) error {
	updatedAt, err := s.update(order.ID, func(o *entities.Order) {
		o.Status = order.Status
		o.AwaitingPaymentSince = order.AwaitingPaymentSince
		o.ProcessedByOperatorID = order.ProcessedByOperatorID
		o.ProcessedByOperatorName = order.ProcessedByOperatorName
	})
	order.UpdatedAt = updatedAt
	return err
}

func (s *MemoryStore) UpdateComment(_ context.Context, _ pgx.Tx, order *entities.Order) error {
	updatedAt, err := s.update(order.ID, func(o *entities.Order) { o.Comment = order.Comment })
	order.UpdatedAt = updatedAt
	return err
}

func (s *MemoryStore) SetReminder(_ context.Context, _ pgx.Tx, id int64, at null.Time) error {
	_, err := s.update(id, func(o *entities.Order) { o.ReminderAt = at })
	return err
}

func (s *MemoryStore) ClaimReminder(_ context.Context, _ pgx.Tx, id int64, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !o.ReminderAt.Valid || !o.ReminderAt.Time.Equal(firedAt) {
		return false, nil
	}
	o.ReminderAt = null.Time{}
	return true, nil
}

func (s *MemoryStore) ReleaseReminder(_ context.Context, _ pgx.Tx, id int64, firedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.ReminderAt.Valid || !isPending(o) {
		return false, nil
	}
	o.ReminderAt = null.TimeFrom(firedAt)
	return true, nil
}

func (s *MemoryStore) selectOrders(match func(o *entities.Order) bool, less func(a, b *entities.Order) bool) []*entities.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*entities.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			res = append(res, cloneOrder(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return less(res[i], res[j]) })
	return res
}

func isPending(o *entities.Order) bool {
	return o.Status == constants.StatusNew || o.Status == constants.StatusAwaitingPayment
}

func (s *MemoryStore) ListDueReminders(_ context.Context, _ pgx.Tx, now time.Time, limit uint64) ([]*entities.Order, error) {
	res := s.selectOrders(
		func(o *entities.Order) bool { return o.ReminderAt.Valid && !o.ReminderAt.Time.After(now) && isPending(o) },
		func(a, b *entities.Order) bool {
			if !a.ReminderAt.Time.Equal(b.ReminderAt.Time) {
				return a.ReminderAt.Time.Before(b.ReminderAt.Time)
			}
			return a.ID < b.ID
		},
	)
	if limit > 0 && uint64(len(res)) > limit {
		res = res[:limit]
	}
	if s.AfterListDue != nil {
		s.AfterListDue()
	}
	return res, nil
}

func (s *MemoryStore) ClaimAging(_ context.Context, _ pgx.Tx, now time.Time, threshold, cooldown time.Duration) ([]entities.AgingClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := make([]entities.AgingClaim, 0)
	for _, o := range s.orders {
		if o.Status != constants.StatusNew || o.CreatedAt.After(now.Add(-threshold)) {
			continue
		}
		if o.LastAgingNotifiedAt.Valid && o.LastAgingNotifiedAt.Time.After(now.Add(-cooldown)) {
			continue
		}
		previous := o.LastAgingNotifiedAt
		o.LastAgingNotifiedAt = null.TimeFrom(now)
		claims = append(claims, entities.AgingClaim{Order: cloneOrder(o), Previous: previous})
	}
	return claims, nil
}

func (s *MemoryStore) ReleaseAging(_ context.Context, _ pgx.Tx, claims []entities.AgingClaim, stamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range claims {
		o, ok := s.orders[c.Order.ID]
		if ok && o.LastAgingNotifiedAt.Valid && o.LastAgingNotifiedAt.Time.Equal(stamp) {
			o.LastAgingNotifiedAt = c.Previous
		}
	}
	return nil
}

func (s *MemoryStore) ListAwaitingPayment(_ context.Context, _ pgx.Tx) ([]*entities.Order, error) {
	return s.selectOrders(
		func(o *entities.Order) bool { return o.Status == constants.StatusAwaitingPayment },
		func(a, b *entities.Order) bool { return a.PaymentAgingSince().Before(b.PaymentAgingSince()) },
	), nil
}

func (s *MemoryStore) List(_ context.Context, _ pgx.Tx, filter repositories.OrderListFilter) ([]*entities.Order, uint64, error) {
	all := s.selectOrders(
		func(o *entities.Order) bool { return !filter.PendingOnly || isPending(o) },
		func(a, b *entities.Order) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		},
	)
	total := uint64(len(all))
	limit := filter.Limit
	if limit == 0 {
		limit = constants.OrdersPageSize
	}
	if filter.Offset >= total {
		return []*entities.Order{}, total, nil
	}
	end := filter.Offset + limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (s *MemoryStore) Stats(_ context.Context, _ pgx.Tx, dayStart time.Time) (*entities.OrderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &entities.OrderStats{ByStatus: make(map[constants.OrderStatus]int64, len(constants.AllStatuses))}
	for _, st := range constants.AllStatuses {
		stats.ByStatus[st] = 0
	}
	for _, o := range s.orders {
		stats.ByStatus[o.Status]++
		stats.Total++
		if !o.CreatedAt.Before(dayStart) {
			stats.Today++
		}
	}
	return stats, nil
}

func (s *MemoryStore) ListCreatedBetween(_ context.Context, _ pgx.Tx, from, to time.Time) ([]*entities.Order, error) {
	return s.selectOrders(
		func(o *entities.Order) bool { return !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) },
		func(a, b *entities.Order) bool { return a.CreatedAt.Before(b.CreatedAt) },
	), nil
}

// ==================== ЖУРНАЛ ====================

func (s *MemoryStore) CreateInTx(_ context.Context, _ pgx.Tx, entry *entities.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[entry.OrderID]; !ok {
		return fmt.Errorf("заказ %d не найден для журнала", entry.OrderID)
	}
	s.historyID++
	entry.ID = s.historyID
	entry.CreatedAt = s.Now()
	s.history = append(s.history, *entry)
	return nil
}

func (s *MemoryStore) FindByOrderID(_ context.Context, _ pgx.Tx, orderID int64) ([]entities.StatusHistoryEntry, error) {
	res := s.History(orderID)
	if res == nil {
		res = []entities.StatusHistoryEntry{}
	}
	return res, nil
}

// ==================== ЗАПУСКИ ПЛАНИРОВЩИКА ====================

func (s *MemoryStore) ClaimDailyRun(_ context.Context, _ pgx.Tx, jobName, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.runs[jobName]; ok && last >= day {
		return false, nil
	}
	s.runs[jobName] = day
	return true, nil
}

func (s *MemoryStore) ReleaseDailyRun(_ context.Context, _ pgx.Tx, jobName, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[jobName] == day {
		delete(s.runs, jobName)
	}
	return nil
}
