package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
)

const orderHistoryTable = "order_status_history"

type OrderHistoryRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistoryEntry) error
	FindByOrderID(ctx context.Context, tx pgx.Tx, orderID int64) ([]entities.StatusHistoryEntry, error)
}

type OrderHistoryRepository struct {
	storage *pgxpool.Pool
}

func NewOrderHistoryRepository(storage *pgxpool.Pool) OrderHistoryRepositoryInterface {
	return &OrderHistoryRepository{storage: storage}
}

func (r *OrderHistoryRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *OrderHistoryRepository) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.StatusHistoryEntry) error {
	query, args, err := psql.Insert(orderHistoryTable).
		Columns("order_id", "old_status", "new_status", "operator_id", "operator_name", "comment").
		Values(entry.OrderID, entry.OldStatus, entry.NewStatus, entry.OperatorID, entry.OperatorName, entry.Comment).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки SQL для истории: %w", err)
	}
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("ошибка записи истории заказа %d: %w", entry.OrderID, err)
	}
	return nil
}

func (r *OrderHistoryRepository) FindByOrderID(ctx context.Context, tx pgx.Tx, orderID int64) ([]entities.StatusHistoryEntry, error) {
	query, args, err := psql.
		Select("id", "order_id", "old_status", "new_status", "operator_id", "operator_name", "comment", "created_at").
		From(orderHistoryTable).
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для истории: %w", err)
	}

	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]entities.StatusHistoryEntry, 0)
	for rows.Next() {
		var h entities.StatusHistoryEntry
		if err := rows.Scan(
			&h.ID, &h.OrderID, &h.OldStatus, &h.NewStatus, &h.OperatorID, &h.OperatorName, &h.Comment, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
