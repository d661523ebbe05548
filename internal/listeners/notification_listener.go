package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/events"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

// NotificationListener доводит изменения заказа до зрителей. Автор изменения исключается:
// у него отрисовка уже обновлена в ответе на действие.
type NotificationListener struct {
	fanout       services.FanoutServiceInterface
	orderRepo    repositories.OrderRepositoryInterface
	tg           telegram.ServiceInterface
	renderer     *services.Renderer
	targetChatID int64
	logger       *zap.Logger
}

func NewNotificationListener(
	fanout services.FanoutServiceInterface,
	orderRepo repositories.OrderRepositoryInterface,
	tg telegram.ServiceInterface,
	renderer *services.Renderer,
	targetChatID int64,
	logger *zap.Logger,
) *NotificationListener {
	return &NotificationListener{
		fanout:       fanout,
		orderRepo:    orderRepo,
		tg:           tg,
		renderer:     renderer,
		targetChatID: targetChatID,
		logger:       logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.OrderIngestedName, l.handleOrderIngested)
	bus.Subscribe(events.OrderStatusChangedName, l.handleOrderChanged)
	bus.Subscribe(events.OrderCommentedName, l.handleOrderChanged)
	bus.Subscribe(events.OrderReminderSetName, l.handleOrderChanged)
	l.logger.Info("NotificationListener подписан на события заказов")
}

// handleOrderIngested публикует карточку нового заказа в рабочий чат и регистрирует её как зрителя.
func (l *NotificationListener) handleOrderIngested(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.OrderIngestedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события %T", event)
	}
	if l.targetChatID == 0 {
		l.logger.Warn("TELEGRAM_TARGET_CHAT_ID не задан, новый заказ не анонсирован", zap.Int64("orderID", e.OrderID))
		return nil
	}

	order, err := l.orderRepo.FindByID(ctx, nil, e.OrderID)
	if err != nil {
		return fmt.Errorf("загрузка заказа %d: %w", e.OrderID, err)
	}
	view := l.renderer.Render(order)

	messageID, err := l.tg.SendMessageEx(ctx, l.targetChatID, view.Text,
		telegram.WithHTML(), telegram.WithKeyboard(services.OrderKeyboard(view)))
	if err != nil {
		return fmt.Errorf("анонс заказа %d: %w", e.OrderID, err)
	}

	viewerID := fmt.Sprintf(constants.ViewerChatFormat, l.targetChatID)
	return l.fanout.RegisterView(ctx, e.OrderID, viewerID, entities.NotificationHandle{
		Channel:   constants.ChannelTelegram,
		ChatID:    l.targetChatID,
		MessageID: messageID,
	})
}

func (l *NotificationListener) handleOrderChanged(ctx context.Context, event eventbus.Event) error {
	var orderID int64
	var actor entities.Actor
	switch e := event.(type) {
	case events.OrderStatusChangedEvent:
		orderID, actor = e.OrderID, e.Actor
	case events.OrderCommentedEvent:
		orderID, actor = e.OrderID, e.Actor
	case events.OrderReminderSetEvent:
		orderID, actor = e.OrderID, e.Actor
	default:
		return fmt.Errorf("неожиданный тип события %T", event)
	}

	l.logger.Debug("Рассылка изменения заказа",
		zap.String("event", event.Name()),
		zap.Int64("orderID", orderID),
		zap.String("excludeViewer", actor.ViewerID),
	)
	return l.fanout.Broadcast(ctx, orderID, actor.ViewerID, l.renderer.Render)
}
