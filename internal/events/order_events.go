package events

import (
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

const (
	OrderIngestedName      = "order.ingested"
	OrderStatusChangedName = "order.status.changed"
	OrderCommentedName     = "order.commented"
	OrderReminderSetName   = "order.reminder.set"
)

// OrderIngestedEvent - заказ впервые сохранён из вебхука.
type OrderIngestedEvent struct {
	OrderID int64
}

func (e OrderIngestedEvent) Name() string { return OrderIngestedName }

// OrderStatusChangedEvent публикуется после коммита перехода.
type OrderStatusChangedEvent struct {
	OrderID   int64
	OldStatus constants.OrderStatus
	NewStatus constants.OrderStatus
	Actor     entities.Actor
}

func (e OrderStatusChangedEvent) Name() string { return OrderStatusChangedName }

type OrderCommentedEvent struct {
	OrderID int64
	Actor   entities.Actor
}

func (e OrderCommentedEvent) Name() string { return OrderCommentedName }

type OrderReminderSetEvent struct {
	OrderID int64
	Actor   entities.Actor
}

func (e OrderReminderSetEvent) Name() string { return OrderReminderSetName }
