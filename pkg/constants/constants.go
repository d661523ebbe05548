// pkg/constants/constants.go
package constants

import "time"

//============== НАПОМИНАНИЯ ==============

// ReminderOptions - допустимые интервалы напоминания в минутах.
var ReminderOptions = []int{15, 30, 60, 120, 240, 1440}

func IsReminderOption(minutes int) bool {
	for _, m := range ReminderOptions {
		if m == minutes {
			return true
		}
	}
	return false
}

//============== ЗРИТЕЛИ (FANOUT) ==============

const (
	// Канал доставки отрисовки заказа.
	ChannelTelegram  = "telegram"
	ChannelWebSocket = "websocket"

	// Формат идентификатора зрителя.
	ViewerWebSocketFormat = "operator:%d"
	ViewerChatFormat      = "chat:%d"
)

//============== CACHE KEYS ==============

const (
	// Состояние диалога в Telegram (ввод комментария).
	// Формат: tg_user_state:<chatID>:<telegramUserID> -> JSON
	CacheKeyTelegramState = "tg_user_state:%d:%d"

	// Зрители заказа в Redis.
	// Формат: order_views:<orderID> -> HASH viewerID -> JSON handle
	CacheKeyOrderViews = "order_views:%d"
)

//============== ПЛАНИРОВЩИК ==============

const (
	JobPaymentReminder = "payment_reminder"

	// Формат даты для scheduler_runs.last_run_date
	RunDateLayout = "2006-01-02"
)

//============== ОГРАНИЧЕНИЯ ==============

const (
	MaxCommentLength = 500
	OrdersPageSize   = 5
	CardLineItems    = 5
	AgingDigestSize  = 15
	DefaultStoreTTL  = 5 * time.Second
)
