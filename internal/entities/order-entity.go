package entities

import (
	"strings"
	"time"

	"github.com/aarondl/null/v8"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

// Order - каноническая запись заказа Shopify. ID - внешний идентификатор из Shopify.
type Order struct {
	ID                      int64                 `db:"id"`
	OrderNumber             null.String           `db:"order_number"`
	Status                  constants.OrderStatus `db:"status"`
	IsIngested              bool                  `db:"is_ingested"`
	CustomerFirstName       null.String           `db:"customer_first_name"`
	CustomerLastName        null.String           `db:"customer_last_name"`
	CustomerPhoneE164       null.String           `db:"customer_phone_e164"`
	RawJSON                 []byte                `db:"raw_json"`
	Comment                 null.String           `db:"comment"`
	ReminderAt              null.Time             `db:"reminder_at"`
	LastAgingNotifiedAt     null.Time             `db:"last_aging_notified_at"`
	AwaitingPaymentSince    null.Time             `db:"awaiting_payment_since"`
	ProcessedByOperatorID   null.Int64            `db:"processed_by_operator_id"`
	ProcessedByOperatorName null.String           `db:"processed_by_operator_name"`
	CreatedAt               time.Time             `db:"created_at"`
	UpdatedAt               time.Time             `db:"updated_at"`
}

// DisplayNumber - номер для людей; если Shopify его не прислал, используем ID.
func (o *Order) DisplayNumber() string {
	if o.OrderNumber.Valid && o.OrderNumber.String != "" {
		return o.OrderNumber.String
	}
	return formatInt(o.ID)
}

func (o *Order) CustomerName() string {
	return strings.TrimSpace(o.CustomerFirstName.String + " " + o.CustomerLastName.String)
}

func (o *Order) IsClosed() bool {
	return constants.IsFinalStatus(o.Status)
}

// PaymentAgingSince - момент, от которого считается ожидание оплаты.
func (o *Order) PaymentAgingSince() time.Time {
	if o.AwaitingPaymentSince.Valid {
		return o.AwaitingPaymentSince.Time
	}
	return o.UpdatedAt
}

// OrderStats - сводка для экрана статистики.
type OrderStats struct {
	Total    int64                           `json:"total"`
	Today    int64                           `json:"today"`
	ByStatus map[constants.OrderStatus]int64 `json:"by_status"`
}

// AgingClaim - заказ, захваченный проходом "давно без внимания", и прежняя отметка для отката.
type AgingClaim struct {
	Order    *Order
	Previous null.Time
}
