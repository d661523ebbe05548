package services

import (
	"context"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/websocket"
)

// TelegramViewSender перерисовывает сообщение-карточку на месте.
type TelegramViewSender struct {
	tg telegram.ServiceInterface
}

func NewTelegramViewSender(tg telegram.ServiceInterface) *TelegramViewSender {
	return &TelegramViewSender{tg: tg}
}

func (s *TelegramViewSender) Channel() string { return constants.ChannelTelegram }

func (s *TelegramViewSender) Deliver(ctx context.Context, handle entities.NotificationHandle, view dto.OrderView) error {
	return s.tg.EditMessageText(ctx, handle.ChatID, handle.MessageID, view.Text,
		telegram.WithHTML(), telegram.WithKeyboard(OrderKeyboard(view)))
}

// WebSocketHub - то, что нужно от pkg/websocket.Hub.
type WebSocketHub interface {
	SendMessageToUser(operatorID int64, payload interface{}, messageType string) error
}

type WebSocketViewSender struct {
	hub WebSocketHub
}

func NewWebSocketViewSender(hub WebSocketHub) *WebSocketViewSender {
	return &WebSocketViewSender{hub: hub}
}

func (s *WebSocketViewSender) Channel() string { return constants.ChannelWebSocket }

func (s *WebSocketViewSender) Deliver(_ context.Context, handle entities.NotificationHandle, view dto.OrderView) error {
	return s.hub.SendMessageToUser(handle.OperatorID, view, websocket.MessageTypeOrderUpdated)
}
