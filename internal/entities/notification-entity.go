package entities

// NotificationHandle - где живёт отрисовка заказа у конкретного зрителя.
type NotificationHandle struct {
	Channel    string `json:"channel"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MessageID  int    `json:"message_id,omitempty"`
	OperatorID int64  `json:"operator_id,omitempty"`
}

// NotificationTarget - эфемерная связь заказ -> зритель -> handle.
type NotificationTarget struct {
	OrderID  int64
	ViewerID string
	Handle   NotificationHandle
}
