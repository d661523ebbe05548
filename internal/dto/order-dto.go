package dto

import (
	"time"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

// Действия над заказом (последний сегмент callback order:<id>:<action>).
const (
	ActionView      = "view"
	ActionContacted = "contacted"
	ActionPaid      = "paid"
	ActionCancel    = "cancel"
	ActionComment   = "comment"
	ActionReminder  = "reminder"
	ActionBack      = "back"
)

type OrderAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

// OrderView - отрисовка заказа, одинаковая для всех каналов.
type OrderView struct {
	OrderID int64                 `json:"order_id"`
	Status  constants.OrderStatus `json:"status"`
	Text    string                `json:"text"`
	Actions []OrderAction         `json:"actions"`
}

type OrderDTO struct {
	ID                      int64                 `json:"id"`
	OrderNumber             string                `json:"order_number"`
	Status                  constants.OrderStatus `json:"status"`
	CustomerName            string                `json:"customer_name"`
	CustomerPhone           string                `json:"customer_phone"`
	Comment                 *string               `json:"comment,omitempty"`
	ReminderAt              *time.Time            `json:"reminder_at,omitempty"`
	AwaitingPaymentSince    *time.Time            `json:"awaiting_payment_since,omitempty"`
	ProcessedByOperatorName *string               `json:"processed_by_operator_name,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
	Fields                  OrderFields           `json:"fields"`
	View                    OrderView             `json:"view"`
}

type TransitionRequestDTO struct {
	Status constants.OrderStatus `json:"status" validate:"required,order_status"`
	// Статус, который оператор видел. Пусто - берётся из графа или текущий.
	ExpectedStatus constants.OrderStatus `json:"expected_status" validate:"omitempty,order_status"`
}

type CommentRequestDTO struct {
	Text string `json:"text" validate:"required,max=500"`
}

type ReminderRequestDTO struct {
	Minutes int `json:"minutes" validate:"required,reminder_minutes"`
}

// TransitionResponseDTO - результат перехода; при конфликте Current - живой статус.
type TransitionResponseDTO struct {
	Outcome string                `json:"outcome"`
	Current constants.OrderStatus `json:"current,omitempty"`
	Message string                `json:"message,omitempty"`
	Order   *OrderDTO             `json:"order,omitempty"`
}

type StatusHistoryDTO struct {
	ID           int64                 `json:"id"`
	OldStatus    *string               `json:"old_status"`
	NewStatus    constants.OrderStatus `json:"new_status"`
	OperatorID   *int64                `json:"operator_id,omitempty"`
	OperatorName *string               `json:"operator_name,omitempty"`
	Comment      *string               `json:"comment,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

type OrderListQueryDTO struct {
	Pending bool   `query:"pending"`
	Offset  uint64 `query:"offset"`
	Limit   uint64 `query:"limit" validate:"omitempty,max=100"`
}

type ExportQueryDTO struct {
	From string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}
