package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/events"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/database/postgresql"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
)

const transientRetryBackoff = 100 * time.Millisecond

// TransitionReply - ответ на намерение сменить статус. View - отрисовка текущего состояния.
type TransitionReply struct {
	Result TransitionResult
	Order  *entities.Order
	View   *dto.OrderView
}

type OrderServiceInterface interface {
	View(ctx context.Context, orderID int64) (*entities.Order, dto.OrderView, error)
	// Transition: expected пуст - берётся из графа (единственный предшественник) или текущий статус.
	Transition(ctx context.Context, orderID int64, target, expected constants.OrderStatus, actor entities.Actor) (TransitionReply, error)
	Comment(ctx context.Context, orderID int64, text string, actor entities.Actor) (*entities.Order, dto.OrderView, error)
	SetReminder(ctx context.Context, orderID int64, minutes int, actor entities.Actor) (*entities.Order, dto.OrderView, error)
	History(ctx context.Context, orderID int64) ([]entities.StatusHistoryEntry, error)
	List(ctx context.Context, filter repositories.OrderListFilter) ([]*entities.Order, uint64, error)
	Stats(ctx context.Context) (*entities.OrderStats, error)
	Renderer() *Renderer
}

type OrderService struct {
	txManager    repositories.TxManagerInterface
	orderRepo    repositories.OrderRepositoryInterface
	historyRepo  repositories.OrderHistoryRepositoryInterface
	engine       TransitionEngineInterface
	renderer     *Renderer
	bus          eventbus.Publisher
	storeTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

func NewOrderService(
	txManager repositories.TxManagerInterface,
	orderRepo repositories.OrderRepositoryInterface,
	historyRepo repositories.OrderHistoryRepositoryInterface,
	engine TransitionEngineInterface,
	renderer *Renderer,
	bus eventbus.Publisher,
	storeTimeout time.Duration,
	logger *zap.Logger,
) OrderServiceInterface {
	if storeTimeout <= 0 {
		storeTimeout = constants.DefaultStoreTTL
	}
	return &OrderService{
		txManager:    txManager,
		orderRepo:    orderRepo,
		historyRepo:  historyRepo,
		engine:       engine,
		renderer:     renderer,
		bus:          bus,
		storeTimeout: storeTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *OrderService) Renderer() *Renderer { return s.renderer }

func (s *OrderService) View(ctx context.Context, orderID int64) (*entities.Order, dto.OrderView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, dto.OrderView{}, err
	}
	return order, s.renderer.Render(order), nil
}

// expectedFor - статус, из которого единственным ребром достижим target.
func expectedFor(target constants.OrderStatus) (constants.OrderStatus, bool) {
	switch target {
	case constants.StatusAwaitingPayment:
		return constants.StatusNew, true
	case constants.StatusPaid:
		return constants.StatusAwaitingPayment, true
	}
	return "", false
}

func (s *OrderService) Transition(ctx context.Context, orderID int64, target, expected constants.OrderStatus, actor entities.Actor) (TransitionReply, error) {
	if !constants.IsKnownStatus(target) {
		return TransitionReply{}, fmt.Errorf("%w: неизвестный статус %q", apperrors.ErrInvalidTransition, target)
	}

	if expected == "" {
		if prev, ok := expectedFor(target); ok {
			expected = prev
		} else {
			// Отмена: ожидаемый - тот, что виден сейчас; под блокировкой проверится ещё раз.
			order, view, err := s.View(ctx, orderID)
			if errors.Is(err, apperrors.ErrNotFound) {
				return TransitionReply{Result: TransitionResult{Outcome: TransitionNotFound}}, nil
			}
			if err != nil {
				return TransitionReply{}, err
			}
			if !constants.CanTransition(order.Status, target) {
				return TransitionReply{
					Result: TransitionResult{Outcome: TransitionConflict, Current: order.Status},
					Order:  order,
					View:   &view,
				}, nil
			}
			expected = order.Status
		}
	}

	var result TransitionResult
	backoff := retry.WithMaxRetries(1, retry.NewConstant(transientRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()

		var err error
		result, err = s.engine.Transition(storeCtx, orderID, expected, target, actor)
		if postgresql.IsTransient(err) {
			s.logger.Warn("Временная ошибка хранилища, повторяем переход", zap.Int64("orderID", orderID), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return TransitionReply{}, err
	}

	reply := TransitionReply{Result: result}
	switch result.Outcome {
	case TransitionApplied:
		view := s.renderer.Render(result.Order)
		reply.Order, reply.View = result.Order, &view
	case TransitionConflict:
		order, view, err := s.View(ctx, orderID)
		if err != nil {
			s.logger.Warn("Не удалось перечитать заказ после конфликта", zap.Int64("orderID", orderID), zap.Error(err))
			break
		}
		reply.Order, reply.View = order, &view
	}
	return reply, nil
}

func (s *OrderService) Comment(ctx context.Context, orderID int64, text string, actor entities.Actor) (*entities.Order, dto.OrderView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, dto.OrderView{}, apperrors.ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > constants.MaxCommentLength {
		return nil, dto.OrderView{}, apperrors.ErrCommentTooLong
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var order *entities.Order
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.FindForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsClosed() {
			return apperrors.ErrOrderClosed
		}

		order.Comment = null.StringFrom(text)
		if err := s.orderRepo.UpdateComment(ctx, tx, order); err != nil {
			return err
		}
		return s.historyRepo.CreateInTx(ctx, tx, &entities.StatusHistoryEntry{
			OrderID:      order.ID,
			OldStatus:    null.StringFrom(order.Status.String()),
			NewStatus:    order.Status,
			OperatorID:   null.NewInt64(actor.OperatorID, actor.OperatorID != 0),
			OperatorName: null.NewString(actor.Name, actor.Name != ""),
			Comment:      null.StringFrom(text),
		})
	})
	if err != nil {
		return nil, dto.OrderView{}, err
	}

	s.logger.Info("Комментарий к заказу сохранён", zap.Int64("orderID", orderID), zap.Int64("operatorID", actor.OperatorID))
	s.bus.Publish(ctx, events.OrderCommentedEvent{OrderID: orderID, Actor: actor})
	return order, s.renderer.Render(order), nil
}

func (s *OrderService) SetReminder(ctx context.Context, orderID int64, minutes int, actor entities.Actor) (*entities.Order, dto.OrderView, error) {
	if !constants.IsReminderOption(minutes) {
		return nil, dto.OrderView{}, apperrors.ErrInvalidReminder
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var order *entities.Order
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.FindForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsClosed() {
			return apperrors.ErrOrderClosed
		}

		at := null.TimeFrom(s.now().Add(time.Duration(minutes) * time.Minute).Truncate(time.Second))
		if err := s.orderRepo.SetReminder(ctx, tx, order.ID, at); err != nil {
			return err
		}
		order.ReminderAt = at
		return nil
	})
	if err != nil {
		return nil, dto.OrderView{}, err
	}

	s.logger.Info("Напоминание установлено",
		zap.Int64("orderID", orderID),
		zap.Int("minutes", minutes),
		zap.Time("at", order.ReminderAt.Time),
	)
	s.bus.Publish(ctx, events.OrderReminderSetEvent{OrderID: orderID, Actor: actor})
	return order, s.renderer.Render(order), nil
}

func (s *OrderService) History(ctx context.Context, orderID int64) ([]entities.StatusHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.orderRepo.FindByID(ctx, nil, orderID); err != nil {
		return nil, err
	}
	return s.historyRepo.FindByOrderID(ctx, nil, orderID)
}

func (s *OrderService) List(ctx context.Context, filter repositories.OrderListFilter) ([]*entities.Order, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.orderRepo.List(ctx, nil, filter)
}

func (s *OrderService) Stats(ctx context.Context) (*entities.OrderStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	local := s.now().In(s.renderer.Location())
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return s.orderRepo.Stats(ctx, nil, dayStart)
}
