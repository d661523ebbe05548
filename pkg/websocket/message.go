package websocket

import "time"

// Envelope - конверт сообщения. Type подсказывает фронтенду, что делать с Payload.
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	// Отрисовка заказа обновилась.
	MessageTypeOrderUpdated = "order.updated"
	// Напоминание по заказу сработало.
	MessageTypeOrderReminder = "order.reminder"
)
