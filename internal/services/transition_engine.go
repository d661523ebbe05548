package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/events"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/metrics"
)

type TransitionOutcome string

const (
	TransitionApplied  TransitionOutcome = "applied"
	TransitionConflict TransitionOutcome = "conflict"
	TransitionNotFound TransitionOutcome = "not_found"
)

// TransitionResult: Order заполнен при Applied, Current - живой статус при Conflict.
type TransitionResult struct {
	Outcome TransitionOutcome
	Order   *entities.Order
	Current constants.OrderStatus
}

type TransitionEngineInterface interface {
	Transition(ctx context.Context, orderID int64, expected, next constants.OrderStatus, actor entities.Actor) (TransitionResult, error)
}

type TransitionEngine struct {
	txManager   repositories.TxManagerInterface
	orderRepo   repositories.OrderRepositoryInterface
	historyRepo repositories.OrderHistoryRepositoryInterface
	bus         eventbus.Publisher
	now         func() time.Time
	logger      *zap.Logger
}

func NewTransitionEngine(
	txManager repositories.TxManagerInterface,
	orderRepo repositories.OrderRepositoryInterface,
	historyRepo repositories.OrderHistoryRepositoryInterface,
	bus eventbus.Publisher,
	logger *zap.Logger,
) *TransitionEngine {
	return &TransitionEngine{
		txManager:   txManager,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		bus:         bus,
		now:         time.Now,
		logger:      logger,
	}
}

// Transition применяет ребро (expected -> next) под блокировкой строки.
// Конфликт и отсутствие заказа - значения, не ошибки.
func (e *TransitionEngine) Transition(ctx context.Context, orderID int64, expected, next constants.OrderStatus, actor entities.Actor) (TransitionResult, error) {
	if !constants.CanTransition(expected, next) {
		metrics.TransitionsTotal.WithLabelValues("invalid").Inc()
		return TransitionResult{}, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, expected, next)
	}

	var result TransitionResult
	err := e.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		order, err := e.orderRepo.FindForUpdate(ctx, tx, orderID)
		if errors.Is(err, apperrors.ErrNotFound) {
			result = TransitionResult{Outcome: TransitionNotFound}
			return nil
		}
		if err != nil {
			return err
		}

		if order.Status != expected {
			result = TransitionResult{Outcome: TransitionConflict, Current: order.Status}
			return nil
		}

		order.Status = next
		if next == constants.StatusAwaitingPayment {
			order.AwaitingPaymentSince = null.TimeFrom(e.now())
		}
		if actor.OperatorID != 0 {
			order.ProcessedByOperatorID = null.Int64From(actor.OperatorID)
		}
		if actor.Name != "" {
			order.ProcessedByOperatorName = null.StringFrom(actor.Name)
		}

		if err := e.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
			return err
		}

		entry := &entities.StatusHistoryEntry{
			OrderID:      order.ID,
			OldStatus:    null.StringFrom(expected.String()),
			NewStatus:    next,
			OperatorID:   null.NewInt64(actor.OperatorID, actor.OperatorID != 0),
			OperatorName: null.NewString(actor.Name, actor.Name != ""),
		}
		if err := e.historyRepo.CreateInTx(ctx, tx, entry); err != nil {
			return err
		}

		result = TransitionResult{Outcome: TransitionApplied, Order: order, Current: next}
		return nil
	})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues("error").Inc()
		return TransitionResult{}, fmt.Errorf("переход заказа %d %s -> %s: %w", orderID, expected, next, err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(result.Outcome)).Inc()

	switch result.Outcome {
	case TransitionApplied:
		e.logger.Info("Статус заказа изменён",
			zap.Int64("orderID", orderID),
			zap.String("from", expected.String()),
			zap.String("to", next.String()),
			zap.Int64("operatorID", actor.OperatorID),
		)
		e.bus.Publish(ctx, events.OrderStatusChangedEvent{
			OrderID:   orderID,
			OldStatus: expected,
			NewStatus: next,
			Actor:     actor,
		})
	case TransitionConflict:
		e.logger.Info("Конфликт статуса",
			zap.Int64("orderID", orderID),
			zap.String("expected", expected.String()),
			zap.String("current", result.Current.String()),
		)
	}
	return result, nil
}
