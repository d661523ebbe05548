package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/metrics"
)

const defaultFanoutWorkers = 8

// ViewSender доставляет отрисовку в один канал. apperrors.ErrTargetGone - зритель исчез.
type ViewSender interface {
	Channel() string
	Deliver(ctx context.Context, handle entities.NotificationHandle, view dto.OrderView) error
}

type FanoutServiceInterface interface {
	RegisterView(ctx context.Context, orderID int64, viewerID string, handle entities.NotificationHandle) error
	Unregister(ctx context.Context, orderID int64, viewerID string) error
	// Broadcast рассылает всем зрителям, кроме excludeViewerID. Ошибки отдельных зрителей только логируются.
	// render вызывается один раз по текущему состоянию заказа, отрисовка общая для всех зрителей:
	// карточка не зависит от того, кто смотрит. Под канал её приводит ViewSender.
	Broadcast(ctx context.Context, orderID int64, excludeViewerID string, render RenderFunc) error
}

type FanoutService struct {
	store        repositories.ViewStoreInterface
	orderRepo    repositories.OrderRepositoryInterface
	senders      map[string]ViewSender
	workers      int
	storeTimeout time.Duration
	logger       *zap.Logger
}

func NewFanoutService(
	store repositories.ViewStoreInterface,
	orderRepo repositories.OrderRepositoryInterface,
	senders []ViewSender,
	workers int,
	storeTimeout time.Duration,
	logger *zap.Logger,
) *FanoutService {
	if workers <= 0 {
		workers = defaultFanoutWorkers
	}
	if storeTimeout <= 0 {
		storeTimeout = constants.DefaultStoreTTL
	}
	bySender := make(map[string]ViewSender, len(senders))
	for _, s := range senders {
		bySender[s.Channel()] = s
	}
	return &FanoutService{
		store:        store,
		orderRepo:    orderRepo,
		senders:      bySender,
		workers:      workers,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

func (f *FanoutService) RegisterView(ctx context.Context, orderID int64, viewerID string, handle entities.NotificationHandle) error {
	if viewerID == "" {
		return fmt.Errorf("%w: пустой viewerID", apperrors.ErrBadRequest)
	}
	if err := f.store.Put(ctx, orderID, viewerID, handle); err != nil {
		return fmt.Errorf("регистрация зрителя %s заказа %d: %w", viewerID, orderID, err)
	}
	return nil
}

func (f *FanoutService) Unregister(ctx context.Context, orderID int64, viewerID string) error {
	return f.store.Delete(ctx, orderID, viewerID)
}

func (f *FanoutService) Broadcast(ctx context.Context, orderID int64, excludeViewerID string, render RenderFunc) error {
	targets, err := f.store.List(ctx, orderID)
	if err != nil {
		return fmt.Errorf("список зрителей заказа %d: %w", orderID, err)
	}

	recipients := targets[:0]
	for _, t := range targets {
		if t.ViewerID != excludeViewerID {
			recipients = append(recipients, t)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, f.storeTimeout)
	order, err := f.orderRepo.FindByID(loadCtx, nil, orderID)
	cancel()
	if err != nil {
		return fmt.Errorf("загрузка заказа %d для рассылки: %w", orderID, err)
	}
	view := render(order)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, target := range recipients {
		target := target
		g.Go(func() error {
			f.deliver(gctx, target, view)
			return nil
		})
	}
	return g.Wait()
}

func (f *FanoutService) deliver(ctx context.Context, target entities.NotificationTarget, view dto.OrderView) {
	channel := target.Handle.Channel
	sender, ok := f.senders[channel]
	if !ok {
		f.logger.Warn("Нет отправителя для канала", zap.String("channel", channel), zap.String("viewerID", target.ViewerID))
		metrics.FanoutDeliveriesTotal.WithLabelValues(channel, "no_sender").Inc()
		return
	}

	err := sender.Deliver(ctx, target.Handle, view)
	switch {
	case err == nil:
		metrics.FanoutDeliveriesTotal.WithLabelValues(channel, "ok").Inc()
	case errors.Is(err, apperrors.ErrTargetGone):
		metrics.FanoutDeliveriesTotal.WithLabelValues(channel, "gone").Inc()
		f.logger.Info("Зритель исчез, удаляем",
			zap.Int64("orderID", target.OrderID), zap.String("viewerID", target.ViewerID))
		if delErr := f.store.Delete(ctx, target.OrderID, target.ViewerID); delErr != nil {
			f.logger.Warn("Не удалось удалить зрителя", zap.String("viewerID", target.ViewerID), zap.Error(delErr))
		}
	default:
		metrics.FanoutDeliveriesTotal.WithLabelValues(channel, "error").Inc()
		f.logger.Error("Ошибка доставки отрисовки заказа",
			zap.Int64("orderID", target.OrderID),
			zap.String("viewerID", target.ViewerID),
			zap.Error(err),
		)
	}
}
