// internal/controllers/telegram/commands.go
package telegram

import (
	"context"
	"strings"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

// ==================== ОБРАБОТКА КОМАНД ====================
func (c *TelegramController) handleCommand(ctx context.Context, chat TelegramChat, userID int64, text string) error {
	command := strings.Fields(text)[0]
	// /stats@OrderBot в группах
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start", "/menu":
		return c.sendMainMenu(ctx, chat.ID, 0)
	case "/stats":
		return c.sendStats(ctx, chat.ID, 0)
	case "/pending":
		return c.sendOrderList(ctx, chat.ID, 0, services.ListKindPending, 0)
	case "/help":
		return c.handleHelpCommand(ctx, chat.ID)
	case "/cancel":
		return c.handleCancelCommand(ctx, chat.ID, userID)
	default:
		if chat.Type != "private" {
			return nil
		}
		_, err := c.tgService.SendMessageEx(ctx, chat.ID, "❓ Невідома команда. Використайте /help")
		return err
	}
}

func (c *TelegramController) handleHelpCommand(ctx context.Context, chatID int64) error {
	helpText := "📖 <b>Довідка</b>\n\n" +
		"/menu - головне меню\n" +
		"/pending - замовлення, що очікують обробки\n" +
		"/stats - статистика\n" +
		"/cancel - скасувати введення коментаря\n\n" +
		"<b>Кнопки картки:</b>\n" +
		"✅ Зв'язались - клієнт отримав дзвінок, чекаємо оплату\n" +
		"💰 Оплатили - закрити замовлення як оплачене\n" +
		"❌ Скасування - закрити без оплати\n" +
		"💬 Коментар, ⏰ Нагадати - нотатки для команди"
	_, err := c.tgService.SendMessageEx(ctx, chatID, helpText, telegram.WithHTML())
	return err
}

func (c *TelegramController) handleCancelCommand(ctx context.Context, chatID, userID int64) error {
	state, err := c.getUserState(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if state == nil {
		_, err = c.tgService.SendMessageEx(ctx, chatID, "Нічого скасовувати")
		return err
	}
	if err := c.clearUserState(ctx, chatID, userID); err != nil {
		return err
	}
	_, err = c.tgService.SendMessageEx(ctx, chatID, "↩️ Введення коментаря скасовано")
	return err
}
