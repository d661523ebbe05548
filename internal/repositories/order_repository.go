package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

const (
	orderTable  = "orders"
	orderFields = `id, order_number, status, is_ingested, customer_first_name, customer_last_name,
		customer_phone_e164, raw_json, comment, reminder_at, last_aging_notified_at, awaiting_payment_since,
		processed_by_operator_id, processed_by_operator_name, created_at, updated_at`
)

// OrderListFilter - параметры списка заказов в боте и API.
type OrderListFilter struct {
	PendingOnly bool
	Offset      uint64
	Limit       uint64
}

type OrderRepositoryInterface interface {
	// InsertIfAbsent возвращает false, если заказ с таким ID уже есть. Существующая строка не меняется.
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, order *entities.Order) (bool, error)
	FindByID(ctx context.Context, tx pgx.Tx, id int64) (*entities.Order, error)
	// FindForUpdate блокирует строку до конца транзакции.
	FindForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*entities.Order, error)

	UpdateStatus(ctx context.Context, tx pgx.Tx, order *entities.Order) error
	UpdateComment(ctx context.Context, tx pgx.Tx, order *entities.Order) error
	SetReminder(ctx context.Context, tx pgx.Tx, id int64, at null.Time) error
	// ClaimReminder снимает напоминание, только если оно всё ещё равно firedAt.
	// true - напоминание досталось вызывающему, отправлять должен он.
	ClaimReminder(ctx context.Context, tx pgx.Tx, id int64, firedAt time.Time) (bool, error)
	// ReleaseReminder возвращает firedAt, если за это время не поставили новое напоминание.
	ReleaseReminder(ctx context.Context, tx pgx.Tx, id int64, firedAt time.Time) (bool, error)

	ListDueReminders(ctx context.Context, tx pgx.Tx, now time.Time, limit uint64) ([]*entities.Order, error)
	ClaimAging(ctx context.Context, tx pgx.Tx, now time.Time, threshold, cooldown time.Duration) ([]entities.AgingClaim, error)
	ReleaseAging(ctx context.Context, tx pgx.Tx, claims []entities.AgingClaim, stamp time.Time) error
	ListAwaitingPayment(ctx context.Context, tx pgx.Tx) ([]*entities.Order, error)

	List(ctx context.Context, tx pgx.Tx, filter OrderListFilter) ([]*entities.Order, uint64, error)
	Stats(ctx context.Context, tx pgx.Tx, dayStart time.Time) (*entities.OrderStats, error)
	ListCreatedBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) ([]*entities.Order, error)
}

type orderRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOrderRepository(storage *pgxpool.Pool, logger *zap.Logger) OrderRepositoryInterface {
	return &orderRepository{storage: storage, logger: logger}
}

// getQuerier - возвращает транзакцию или пул соединений
func (r *orderRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanOrder(row pgx.Row, extra ...any) (*entities.Order, error) {
	var o entities.Order
	dest := []any{
		&o.ID, &o.OrderNumber, &o.Status, &o.IsIngested, &o.CustomerFirstName, &o.CustomerLastName,
		&o.CustomerPhoneE164, &o.RawJSON, &o.Comment, &o.ReminderAt, &o.LastAgingNotifiedAt, &o.AwaitingPaymentSince,
		&o.ProcessedByOperatorID, &o.ProcessedByOperatorName, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования orders: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, q Querier, builder sq.SelectBuilder) ([]*entities.Order, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для orders: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*entities.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepository) InsertIfAbsent(ctx context.Context, tx pgx.Tx, order *entities.Order) (bool, error) {
	query, args, err := psql.Insert(orderTable).
		Columns("id", "order_number", "status", "is_ingested", "customer_first_name", "customer_last_name",
			"customer_phone_e164", "raw_json").
		Values(order.ID, order.OrderNumber, order.Status, true, order.CustomerFirstName, order.CustomerLastName,
			order.CustomerPhoneE164, order.RawJSON).
		Suffix("ON CONFLICT (id) DO NOTHING RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("ошибка сборки SQL для InsertIfAbsent: %w", err)
	}

	err = r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка вставки заказа %d: %w", order.ID, err)
	}
	order.IsIngested = true
	return true, nil
}

func (r *orderRepository) FindByID(ctx context.Context, tx pgx.Tx, id int64) (*entities.Order, error) {
	query, args, err := psql.Select(orderFields).From(orderTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для FindByID: %w", err)
	}
	return scanOrder(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *orderRepository) FindForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*entities.Order, error) {
	query, args, err := psql.Select(orderFields).From(orderTable).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для FindForUpdate: %w", err)
	}
	return scanOrder(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, order *entities.Order) error {
	query, args, err := psql.Update(orderTable).
		Set("status", order.Status).
		Set("awaiting_payment_since", order.AwaitingPaymentSince).
		Set("processed_by_operator_id", order.ProcessedByOperatorID).
		Set("processed_by_operator_name", order.ProcessedByOperatorName).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": order.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки SQL для UpdateStatus: %w", err)
	}
	return r.scanUpdatedAt(ctx, tx, order, query, args)
}

func (r *orderRepository) UpdateComment(ctx context.Context, tx pgx.Tx, order *entities.Order) error {
	query, args, err := psql.Update(orderTable).
		Set("comment", order.Comment).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": order.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки SQL для UpdateComment: %w", err)
	}
	return r.scanUpdatedAt(ctx, tx, order, query, args)
}

func (r *orderRepository) scanUpdatedAt(ctx context.Context, tx pgx.Tx, order *entities.Order, query string, args []interface{}) error {
	err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка обновления заказа %d: %w", order.ID, err)
	}
	return nil
}

func (r *orderRepository) SetReminder(ctx context.Context, tx pgx.Tx, id int64, at null.Time) error {
	query, args, err := psql.Update(orderTable).
		Set("reminder_at", at).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки SQL для SetReminder: %w", err)
	}
	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка установки напоминания заказу %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *orderRepository) ClaimReminder(ctx context.Context, tx pgx.Tx, id int64, firedAt time.Time) (bool, error) {
	query, args, err := psql.Update(orderTable).
		Set("reminder_at", nil).
		Where(sq.Eq{"id": id, "reminder_at": firedAt}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("ошибка сборки SQL для ClaimReminder: %w", err)
	}
	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("ошибка снятия напоминания заказа %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepository) ReleaseReminder(ctx context.Context, tx pgx.Tx, id int64, firedAt time.Time) (bool, error) {
	query, args, err := psql.Update(orderTable).
		Set("reminder_at", firedAt).
		Where(sq.Eq{"id": id, "reminder_at": nil}).
		Where(sq.Eq{"status": []string{constants.StatusNew.String(), constants.StatusAwaitingPayment.String()}}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("ошибка сборки SQL для ReleaseReminder: %w", err)
	}
	tag, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("ошибка возврата напоминания заказа %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepository) ListDueReminders(ctx context.Context, tx pgx.Tx, now time.Time, limit uint64) ([]*entities.Order, error) {
	builder := psql.Select(orderFields).From(orderTable).
		Where(sq.LtOrEq{"reminder_at": now}).
		Where(sq.Eq{"status": []string{constants.StatusNew.String(), constants.StatusAwaitingPayment.String()}}).
		OrderBy("reminder_at ASC", "id ASC").
		Limit(limit)
	return r.queryOrders(ctx, r.getQuerier(tx), builder)
}

// ClaimAging одним UPDATE ставит отметку всем подходящим заказам и возвращает их с прежней отметкой.
// Параллельный проход ждёт блокировку строк и после неё уже не видит их подходящими.
func (r *orderRepository) ClaimAging(ctx context.Context, tx pgx.Tx, now time.Time, threshold, cooldown time.Duration) ([]entities.AgingClaim, error) {
	query := `
		WITH candidates AS (
			SELECT id, last_aging_notified_at AS previous
			FROM orders
			WHERE status = $1
			  AND created_at <= $2
			  AND (last_aging_notified_at IS NULL OR last_aging_notified_at <= $3)
			FOR UPDATE
		)
		UPDATE orders o
		SET last_aging_notified_at = $4
		FROM candidates c
		WHERE o.id = c.id
		  AND o.status = $1
		  AND (o.last_aging_notified_at IS NULL OR o.last_aging_notified_at <= $3)
		RETURNING o.id, o.order_number, o.status, o.is_ingested, o.customer_first_name, o.customer_last_name,
			o.customer_phone_e164, o.raw_json, o.comment, o.reminder_at, o.last_aging_notified_at, o.awaiting_payment_since,
			o.processed_by_operator_id, o.processed_by_operator_name, o.created_at, o.updated_at, c.previous`

	rows, err := r.getQuerier(tx).Query(ctx, query,
		constants.StatusNew.String(), now.Add(-threshold), now.Add(-cooldown), now)
	if err != nil {
		return nil, fmt.Errorf("ошибка захвата заказов без внимания: %w", err)
	}
	defer rows.Close()

	claims := make([]entities.AgingClaim, 0)
	for rows.Next() {
		var previous null.Time
		o, err := scanOrder(rows, &previous)
		if err != nil {
			return nil, err
		}
		claims = append(claims, entities.AgingClaim{Order: o, Previous: previous})
	}
	return claims, rows.Err()
}

// ReleaseAging возвращает прежние отметки, если их не перезаписал кто-то другой.
func (r *orderRepository) ReleaseAging(ctx context.Context, tx pgx.Tx, claims []entities.AgingClaim, stamp time.Time) error {
	q := r.getQuerier(tx)
	for _, c := range claims {
		query, args, err := psql.Update(orderTable).
			Set("last_aging_notified_at", c.Previous).
			Where(sq.Eq{"id": c.Order.ID, "last_aging_notified_at": stamp}).
			ToSql()
		if err != nil {
			return fmt.Errorf("ошибка сборки SQL для ReleaseAging: %w", err)
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка отката отметки заказа %d: %w", c.Order.ID, err)
		}
	}
	return nil
}

func (r *orderRepository) ListAwaitingPayment(ctx context.Context, tx pgx.Tx) ([]*entities.Order, error) {
	builder := psql.Select(orderFields).From(orderTable).
		Where(sq.Eq{"status": constants.StatusAwaitingPayment.String()}).
		OrderBy("COALESCE(awaiting_payment_since, updated_at) ASC", "id ASC")
	return r.queryOrders(ctx, r.getQuerier(tx), builder)
}

func (r *orderRepository) List(ctx context.Context, tx pgx.Tx, filter OrderListFilter) ([]*entities.Order, uint64, error) {
	q := r.getQuerier(tx)

	where := sq.And{}
	if filter.PendingOnly {
		where = append(where, sq.Eq{"status": []string{constants.StatusNew.String(), constants.StatusAwaitingPayment.String()}})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(orderTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL для подсчёта заказов: %w", err)
	}
	var total uint64
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта заказов: %w", err)
	}
	if total == 0 {
		return []*entities.Order{}, 0, nil
	}

	limit := filter.Limit
	if limit == 0 {
		limit = constants.OrdersPageSize
	}
	builder := psql.Select(orderFields).From(orderTable).Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).Offset(filter.Offset)
	orders, err := r.queryOrders(ctx, q, builder)
	return orders, total, err
}

func (r *orderRepository) Stats(ctx context.Context, tx pgx.Tx, dayStart time.Time) (*entities.OrderStats, error) {
	query, args, err := psql.Select("status", "COUNT(*)").
		Column(sq.Expr("COUNT(*) FILTER (WHERE created_at >= ?)", dayStart)).
		From(orderTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для Stats: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта статистики: %w", err)
	}
	defer rows.Close()

	stats := &entities.OrderStats{ByStatus: make(map[constants.OrderStatus]int64, len(constants.AllStatuses))}
	for _, s := range constants.AllStatuses {
		stats.ByStatus[s] = 0
	}
	for rows.Next() {
		var status constants.OrderStatus
		var count, today int64
		if err := rows.Scan(&status, &count, &today); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.Today += today
	}
	return stats, rows.Err()
}

func (r *orderRepository) ListCreatedBetween(ctx context.Context, tx pgx.Tx, from, to time.Time) ([]*entities.Order, error) {
	builder := psql.Select(orderFields).From(orderTable).
		Where(sq.GtOrEq{"created_at": from}).
		Where(sq.Lt{"created_at": to}).
		OrderBy("created_at ASC", "id ASC")
	return r.queryOrders(ctx, r.getQuerier(tx), builder)
}
