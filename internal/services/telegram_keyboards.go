package services

import (
	"fmt"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

// Формат callback_data.
const (
	CallbackOrderFormat    = "order:%d:%s"
	CallbackReminderFormat = "reminder:%d:%d"
	CallbackListFormat     = "orders:list:%s:%d"
	CallbackStats          = "stats:show"
	CallbackMenu           = "menu:main"

	ListKindPending = "pending"
	ListKindAll     = "all"
)

// OrderKeyboard - кнопки карточки по два в ряд.
func OrderKeyboard(view dto.OrderView) [][]telegram.InlineKeyboardButton {
	var rows [][]telegram.InlineKeyboardButton
	var row []telegram.InlineKeyboardButton
	for _, a := range view.Actions {
		row = append(row, telegram.InlineKeyboardButton{
			Text:         a.Label,
			CallbackData: fmt.Sprintf(CallbackOrderFormat, view.OrderID, a.Action),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

var reminderLabels = map[int]string{
	15:   "15 хв",
	30:   "30 хв",
	60:   "1 год",
	120:  "2 год",
	240:  "4 год",
	1440: "Завтра",
}

func ReminderKeyboard(orderID int64) [][]telegram.InlineKeyboardButton {
	button := func(minutes int) telegram.InlineKeyboardButton {
		return telegram.InlineKeyboardButton{
			Text:         reminderLabels[minutes],
			CallbackData: fmt.Sprintf(CallbackReminderFormat, orderID, minutes),
		}
	}
	return [][]telegram.InlineKeyboardButton{
		{button(15), button(30), button(60)},
		{button(120), button(240), button(1440)},
		{{Text: "↩️ Назад", CallbackData: fmt.Sprintf(CallbackOrderFormat, orderID, dto.ActionBack)}},
	}
}

func MainMenuKeyboard() [][]telegram.InlineKeyboardButton {
	return [][]telegram.InlineKeyboardButton{
		{{Text: "📋 Очікують обробки", CallbackData: fmt.Sprintf(CallbackListFormat, ListKindPending, 0)}},
		{{Text: "📦 Усі замовлення", CallbackData: fmt.Sprintf(CallbackListFormat, ListKindAll, 0)}},
		{{Text: "📊 Статистика", CallbackData: CallbackStats}},
	}
}

// ListKeyboard - по кнопке на заказ и навигация по страницам.
func ListKeyboard(kind string, orders []*entities.Order, offset, total, pageSize uint64) [][]telegram.InlineKeyboardButton {
	var rows [][]telegram.InlineKeyboardButton
	for _, o := range orders {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s #%s • %s", constants.StatusEmoji(o.Status), o.DisplayNumber(), listCustomer(o)),
			CallbackData: fmt.Sprintf(CallbackOrderFormat, o.ID, dto.ActionView),
		}})
	}

	var nav []telegram.InlineKeyboardButton
	if offset > 0 {
		prev := uint64(0)
		if offset > pageSize {
			prev = offset - pageSize
		}
		nav = append(nav, telegram.InlineKeyboardButton{Text: "⬅️", CallbackData: fmt.Sprintf(CallbackListFormat, kind, prev)})
	}
	if offset+pageSize < total {
		nav = append(nav, telegram.InlineKeyboardButton{Text: "➡️", CallbackData: fmt.Sprintf(CallbackListFormat, kind, offset+pageSize)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "🏠 Меню", CallbackData: CallbackMenu}})
	return rows
}

func listCustomer(o *entities.Order) string {
	if name := o.CustomerName(); name != "" {
		return name
	}
	return "Без імені"
}
