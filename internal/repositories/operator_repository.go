package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

const (
	operatorTable  = "operators"
	operatorFields = "id, login, name, telegram_user_id, password_hash, is_active, created_at, updated_at"
)

type OperatorRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id int64) (*entities.Operator, error)
	FindByLogin(ctx context.Context, tx pgx.Tx, login string) (*entities.Operator, error)
	// Только активные операторы.
	FindByTelegramUserID(ctx context.Context, tx pgx.Tx, telegramUserID int64) (*entities.Operator, error)
	Upsert(ctx context.Context, tx pgx.Tx, op *entities.Operator) (int64, error)
}

type operatorRepository struct {
	storage *pgxpool.Pool
}

func NewOperatorRepository(storage *pgxpool.Pool) OperatorRepositoryInterface {
	return &operatorRepository{storage: storage}
}

func (r *operatorRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *operatorRepository) findOne(ctx context.Context, q Querier, where sq.Sqlizer) (*entities.Operator, error) {
	query, args, err := psql.Select(operatorFields).From(operatorTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для operators: %w", err)
	}
	var op entities.Operator
	err = q.QueryRow(ctx, query, args...).Scan(
		&op.ID, &op.Login, &op.Name, &op.TelegramUserID, &op.PasswordHash, &op.IsActive, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования operators: %w", err)
	}
	return &op, nil
}

func (r *operatorRepository) FindByID(ctx context.Context, tx pgx.Tx, id int64) (*entities.Operator, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"id": id})
}

func (r *operatorRepository) FindByLogin(ctx context.Context, tx pgx.Tx, login string) (*entities.Operator, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"login": login})
}

func (r *operatorRepository) FindByTelegramUserID(ctx context.Context, tx pgx.Tx, telegramUserID int64) (*entities.Operator, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"telegram_user_id": telegramUserID, "is_active": true})
}

func (r *operatorRepository) Upsert(ctx context.Context, tx pgx.Tx, op *entities.Operator) (int64, error) {
	query, args, err := psql.Insert(operatorTable).
		Columns("login", "name", "telegram_user_id", "password_hash", "is_active").
		Values(op.Login, op.Name, op.TelegramUserID, op.PasswordHash, op.IsActive).
		Suffix(`ON CONFLICT (login) DO UPDATE SET
			name = EXCLUDED.name,
			telegram_user_id = EXCLUDED.telegram_user_id,
			password_hash = EXCLUDED.password_hash,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING id`).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки SQL для Upsert: %w", err)
	}
	var id int64
	if err := r.getQuerier(tx).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка сохранения оператора %s: %w", op.Login, err)
	}
	op.ID = id
	return id, nil
}
