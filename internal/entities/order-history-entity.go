package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

// StatusHistoryEntry - запись журнала. OldStatus пуст у записи создания.
// У записи-комментария OldStatus == NewStatus.
type StatusHistoryEntry struct {
	ID           int64                 `db:"id"`
	OrderID      int64                 `db:"order_id"`
	OldStatus    null.String           `db:"old_status"`
	NewStatus    constants.OrderStatus `db:"new_status"`
	OperatorID   null.Int64            `db:"operator_id"`
	OperatorName null.String           `db:"operator_name"`
	Comment      null.String           `db:"comment"`
	CreatedAt    time.Time             `db:"created_at"`
}
