package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

const (
	replyStatusChanged = "⚠️ Статус вже змінився"
	replyOrderNotFound = "❌ Замовлення не знайдено"
	replyOrderClosed   = "🔒 Замовлення вже закрите"
)

// callbackReply - текст для answerCallbackQuery, отвечаем ровно один раз.
type callbackReply struct {
	text  string
	alert bool
}

func (c *TelegramController) handleCallbackQuery(ctx context.Context, query *TelegramCallbackQuery) (callbackReply, error) {
	operator, ok := c.authorize(ctx, query.From.ID)
	if !ok || query.Message == nil {
		return callbackReply{}, nil
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	actor := actorFor(operator, chatID)
	data := query.Data

	switch {
	case data == services.CallbackMenu:
		return callbackReply{}, c.sendMainMenu(ctx, chatID, messageID)
	case data == services.CallbackStats:
		return callbackReply{}, c.sendStats(ctx, chatID, messageID)
	case strings.HasPrefix(data, "orders:list:"):
		kind, offset, ok := parseListCallback(data)
		if !ok {
			break
		}
		return callbackReply{}, c.sendOrderList(ctx, chatID, messageID, kind, offset)
	case strings.HasPrefix(data, "order:"):
		orderID, action, ok := parseOrderCallback(data)
		if !ok {
			break
		}
		return c.handleOrderAction(ctx, chatID, query.From.ID, messageID, orderID, action, actor)
	case strings.HasPrefix(data, "reminder:"):
		orderID, minutes, ok := parseReminderCallback(data)
		if !ok {
			break
		}
		return c.handleSetReminder(ctx, chatID, messageID, orderID, minutes, actor)
	}

	c.logger.Warn("Неизвестный callback", zap.String("data", data))
	return callbackReply{}, nil
}

func (c *TelegramController) handleOrderAction(ctx context.Context, chatID, userID int64, messageID int, orderID int64, action string, actor entities.Actor) (callbackReply, error) {
	switch action {
	case dto.ActionView, dto.ActionBack:
		return c.handleShowOrder(ctx, chatID, messageID, orderID)
	case dto.ActionContacted, dto.ActionPaid, dto.ActionCancel:
		target, _ := services.TargetForAction(action)
		return c.handleTransition(ctx, chatID, messageID, orderID, target, actor)
	case dto.ActionComment:
		return c.handleCommentStart(ctx, chatID, userID, messageID, orderID, actor)
	case dto.ActionReminder:
		return c.handleReminderOptions(ctx, chatID, messageID, orderID)
	}
	c.logger.Warn("Неизвестное действие с заказом", zap.String("action", action), zap.Int64("orderID", orderID))
	return callbackReply{}, nil
}

func (c *TelegramController) handleShowOrder(ctx context.Context, chatID int64, messageID int, orderID int64) (callbackReply, error) {
	_, view, err := c.orderService.View(ctx, orderID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return callbackReply{text: replyOrderNotFound, alert: true}, nil
	}
	if err != nil {
		return callbackReply{}, err
	}
	return callbackReply{}, c.showCard(ctx, chatID, messageID, view)
}

// handleTransition - проигравший гонку получает предупреждение и актуальную карточку.
func (c *TelegramController) handleTransition(ctx context.Context, chatID int64, messageID int, orderID int64, target constants.OrderStatus, actor entities.Actor) (callbackReply, error) {
	reply, err := c.orderService.Transition(ctx, orderID, target, "", actor)
	if errors.Is(err, apperrors.ErrInvalidTransition) {
		return callbackReply{text: replyStatusChanged, alert: true}, nil
	}
	if err != nil {
		return callbackReply{}, err
	}

	switch reply.Result.Outcome {
	case services.TransitionApplied:
		if err := c.showCard(ctx, chatID, messageID, *reply.View); err != nil {
			return callbackReply{}, err
		}
		return callbackReply{text: fmt.Sprintf("%s %s", constants.StatusEmoji(target), constants.StatusTitle(target))}, nil
	case services.TransitionConflict:
		if reply.View != nil {
			if err := c.showCard(ctx, chatID, messageID, *reply.View); err != nil {
				c.logger.Warn("Не удалось перерисовать карточку после конфликта", zap.Int64("orderID", orderID), zap.Error(err))
			}
		}
		return callbackReply{text: replyStatusChanged, alert: true}, nil
	default:
		return callbackReply{text: replyOrderNotFound, alert: true}, nil
	}
}

func (c *TelegramController) handleCommentStart(ctx context.Context, chatID, userID int64, messageID int, orderID int64, actor entities.Actor) (callbackReply, error) {
	order, _, err := c.orderService.View(ctx, orderID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return callbackReply{text: replyOrderNotFound, alert: true}, nil
	}
	if err != nil {
		return callbackReply{}, err
	}
	if order.IsClosed() {
		return callbackReply{text: replyOrderClosed, alert: true}, nil
	}

	if err := c.setUserState(ctx, chatID, userID, dto.NewCommentState(orderID, messageID, actor.OperatorID)); err != nil {
		return callbackReply{}, err
	}
	prompt := fmt.Sprintf("💬 Напишіть коментар до замовлення <b>#%s</b> одним повідомленням (до %d символів).\n\nСкасувати: /cancel",
		telegram.EscapeHTML(order.DisplayNumber()), constants.MaxCommentLength)
	if _, err := c.tgService.SendMessageEx(ctx, chatID, prompt, telegram.WithHTML()); err != nil {
		return callbackReply{}, err
	}
	return callbackReply{}, nil
}

func (c *TelegramController) handleCommentInput(ctx context.Context, chatID, userID int64, state *dto.TelegramState, text string, actor entities.Actor) error {
	_, view, err := c.orderService.Comment(ctx, state.OrderID, text, actor)
	switch {
	case errors.Is(err, apperrors.ErrCommentTooLong):
		_, err = c.tgService.SendMessageEx(ctx, chatID,
			fmt.Sprintf("❗ Коментар задовгий (максимум %d символів). Спробуйте ще раз або /cancel.", constants.MaxCommentLength))
		return err
	case errors.Is(err, apperrors.ErrEmptyComment):
		_, err = c.tgService.SendMessageEx(ctx, chatID, "❗ Коментар порожній. Напишіть текст або /cancel.")
		return err
	case errors.Is(err, apperrors.ErrOrderClosed), errors.Is(err, apperrors.ErrNotFound):
		_ = c.clearUserState(ctx, chatID, userID)
		msg := replyOrderClosed
		if errors.Is(err, apperrors.ErrNotFound) {
			msg = replyOrderNotFound
		}
		_, err = c.tgService.SendMessageEx(ctx, chatID, msg)
		return err
	case err != nil:
		return err
	}

	if err := c.clearUserState(ctx, chatID, userID); err != nil {
		c.logger.Warn("Не удалось сбросить состояние чата", zap.Int64("chatID", chatID), zap.Error(err))
	}
	if err := c.showCard(ctx, chatID, state.MessageID, view); err != nil {
		return err
	}
	_, err = c.tgService.SendMessageEx(ctx, chatID, "✅ Коментар збережено")
	return err
}

func (c *TelegramController) handleReminderOptions(ctx context.Context, chatID int64, messageID int, orderID int64) (callbackReply, error) {
	order, view, err := c.orderService.View(ctx, orderID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return callbackReply{text: replyOrderNotFound, alert: true}, nil
	}
	if err != nil {
		return callbackReply{}, err
	}
	if order.IsClosed() {
		return callbackReply{text: replyOrderClosed, alert: true}, c.showCard(ctx, chatID, messageID, view)
	}

	text := view.Text + "\n\n⏰ <b>Коли нагадати?</b>"
	if _, err := c.tgService.EditOrSendMessage(ctx, chatID, messageID, text,
		telegram.WithHTML(), telegram.WithKeyboard(services.ReminderKeyboard(orderID))); err != nil {
		return callbackReply{}, err
	}
	return callbackReply{}, nil
}

func (c *TelegramController) handleSetReminder(ctx context.Context, chatID int64, messageID int, orderID int64, minutes int, actor entities.Actor) (callbackReply, error) {
	order, view, err := c.orderService.SetReminder(ctx, orderID, minutes, actor)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return callbackReply{text: replyOrderNotFound, alert: true}, nil
	case errors.Is(err, apperrors.ErrOrderClosed):
		return callbackReply{text: replyOrderClosed, alert: true}, nil
	case errors.Is(err, apperrors.ErrInvalidReminder):
		return callbackReply{text: "❗ Недопустимий інтервал", alert: true}, nil
	case err != nil:
		return callbackReply{}, err
	}

	if err := c.showCard(ctx, chatID, messageID, view); err != nil {
		return callbackReply{}, err
	}
	at := order.ReminderAt.Time.In(c.orderService.Renderer().Location()).Format("02.01 15:04")
	return callbackReply{text: "⏰ Нагадування на " + at}, nil
}

func (c *TelegramController) sendOrderList(ctx context.Context, chatID int64, messageID int, kind string, offset uint64) error {
	pageSize := uint64(constants.OrdersPageSize)
	orders, total, err := c.orderService.List(ctx, repositories.OrderListFilter{
		PendingOnly: kind == services.ListKindPending,
		Offset:      offset,
		Limit:       pageSize,
	})
	if err != nil {
		return err
	}

	title := "📦 <b>Усі замовлення</b>"
	if kind == services.ListKindPending {
		title = "📋 <b>Очікують обробки</b>"
	}
	var text string
	if total == 0 {
		text = title + "\n\nЗамовлень немає 🎉"
	} else {
		pages := (total + pageSize - 1) / pageSize
		text = fmt.Sprintf("%s\n\nВсього: %d • Сторінка %d/%d", title, total, offset/pageSize+1, pages)
	}

	_, err = c.tgService.EditOrSendMessage(ctx, chatID, messageID, text,
		telegram.WithHTML(), telegram.WithKeyboard(services.ListKeyboard(kind, orders, offset, total, pageSize)))
	return err
}

func (c *TelegramController) sendStats(ctx context.Context, chatID int64, messageID int) error {
	stats, err := c.orderService.Stats(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("📊 <b>Статистика замовлень</b>\n\n")
	fmt.Fprintf(&b, "Всього: <b>%d</b>\nСьогодні: <b>%d</b>\n", stats.Total, stats.Today)
	for _, status := range constants.AllStatuses {
		fmt.Fprintf(&b, "\n%s %s: %d", constants.StatusEmoji(status), constants.StatusTitle(status), stats.ByStatus[status])
	}

	keyboard := [][]telegram.InlineKeyboardButton{{{Text: "🏠 Меню", CallbackData: services.CallbackMenu}}}
	_, err = c.tgService.EditOrSendMessage(ctx, chatID, messageID, b.String(),
		telegram.WithHTML(), telegram.WithKeyboard(keyboard))
	return err
}

func (c *TelegramController) sendMainMenu(ctx context.Context, chatID int64, messageID int) error {
	_, err := c.tgService.EditOrSendMessage(ctx, chatID, messageID, "🏠 <b>Головне меню</b>\n\nОберіть розділ:",
		telegram.WithHTML(), telegram.WithKeyboard(services.MainMenuKeyboard()))
	return err
}

// ==================== РАЗБОР CALLBACK ====================

// order:<id>:<action>
func parseOrderCallback(data string) (int64, string, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "order" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return 0, "", false
	}
	return id, parts[2], true
}

// reminder:<id>:<minutes>
func parseReminderCallback(data string) (int64, int, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "reminder" {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	minutes, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return id, minutes, true
}

// orders:list:<kind>:<offset>
func parseListCallback(data string) (string, uint64, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != "orders" || parts[1] != "list" {
		return "", 0, false
	}
	if parts[2] != services.ListKindPending && parts[2] != services.ListKindAll {
		return "", 0, false
	}
	offset, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], offset, true
}
