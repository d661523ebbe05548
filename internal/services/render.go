package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const cardDivider = "————————————————————"

// RenderFunc строит отрисовку по текущему состоянию заказа.
type RenderFunc func(order *entities.Order) dto.OrderView

// Renderer - чистая отрисовка карточки. Зависит только от часового пояса.
type Renderer struct {
	loc *time.Location
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

func (r *Renderer) Location() *time.Location { return r.loc }

func (r *Renderer) Render(order *entities.Order) dto.OrderView {
	return dto.OrderView{
		OrderID: order.ID,
		Status:  order.Status,
		Text:    r.cardText(order),
		Actions: OrderActions(order.Status),
	}
}

// OrderActions - кнопки, доступные в статусе.
func OrderActions(status constants.OrderStatus) []dto.OrderAction {
	var actions []dto.OrderAction
	switch status {
	case constants.StatusNew:
		actions = append(actions,
			dto.OrderAction{Action: dto.ActionContacted, Label: "✅ Зв'язались"},
			dto.OrderAction{Action: dto.ActionCancel, Label: "❌ Скасування"},
		)
	case constants.StatusAwaitingPayment:
		actions = append(actions,
			dto.OrderAction{Action: dto.ActionPaid, Label: "💰 Оплатили"},
			dto.OrderAction{Action: dto.ActionCancel, Label: "❌ Скасування"},
		)
	}
	if !constants.IsFinalStatus(status) {
		actions = append(actions,
			dto.OrderAction{Action: dto.ActionComment, Label: "💬 Коментар"},
			dto.OrderAction{Action: dto.ActionReminder, Label: "⏰ Нагадати"},
		)
	}
	return actions
}

// TargetForAction переводит кнопку в целевой статус.
func TargetForAction(action string) (constants.OrderStatus, bool) {
	switch action {
	case dto.ActionContacted:
		return constants.StatusAwaitingPayment, true
	case dto.ActionPaid:
		return constants.StatusPaid, true
	case dto.ActionCancel:
		return constants.StatusCancelled, true
	}
	return "", false
}

func (r *Renderer) cardText(order *entities.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 <b>Замовлення #%s</b> • %s %s\n",
		telegram.EscapeHTML(order.DisplayNumber()), constants.StatusEmoji(order.Status), constants.StatusTitle(order.Status))
	b.WriteString(cardDivider + "\n")

	name := order.CustomerName()
	if name == "" {
		name = "Без імені"
	}
	phone := utils.PrettyUAPhone(order.CustomerPhoneE164.String)
	if phone == "" {
		phone = "Не вказано"
	}
	fmt.Fprintf(&b, "👤 %s\n📱 %s", telegram.EscapeHTML(name), phone)

	if len(order.RawJSON) > 0 {
		payload, err := ParseShopifyOrder(order.RawJSON)
		if err == nil {
			r.writeDetails(&b, ExtractOrderFields(payload))
		}
	}

	if order.Comment.Valid || order.ReminderAt.Valid || order.ProcessedByOperatorName.Valid {
		b.WriteString("\n" + cardDivider)
		if order.Comment.Valid && order.Comment.String != "" {
			fmt.Fprintf(&b, "\n💬 <i>Коментар: %s</i>", telegram.EscapeHTML(order.Comment.String))
		}
		if order.ReminderAt.Valid {
			fmt.Fprintf(&b, "\n⏰ <i>Нагадування: %s</i>", order.ReminderAt.Time.In(r.loc).Format("02.01 15:04"))
		}
		if order.ProcessedByOperatorName.Valid && order.ProcessedByOperatorName.String != "" {
			fmt.Fprintf(&b, "\n👨‍💼 <i>Менеджер: %s</i>", telegram.EscapeHTML(order.ProcessedByOperatorName.String))
		}
	}
	return b.String()
}

func (r *Renderer) writeDetails(b *strings.Builder, f dto.OrderFields) {
	if len(f.LineItems) == 0 && f.DeliveryCity == "" && f.DeliveryAddress == "" && f.TotalPrice == "" {
		return
	}
	currency := f.Currency
	if currency == "" {
		currency = "UAH"
	}

	b.WriteString("\n" + cardDivider)
	if len(f.LineItems) > 0 {
		b.WriteString("\n🛍 <b>Товари:</b>")
		for _, item := range f.LineItems {
			fmt.Fprintf(b, "\n• %s x%d - %s %s", telegram.EscapeHTML(item.Title), item.Quantity, item.Price, currency)
		}
		if rest := f.TotalItems - len(f.LineItems); rest > 0 {
			fmt.Fprintf(b, "\n<i>...та ще %d товарів</i>", rest)
		}
	}

	var delivery []string
	for _, part := range []string{f.DeliveryCity, f.DeliveryAddress} {
		if part != "" {
			delivery = append(delivery, telegram.EscapeHTML(part))
		}
	}
	if len(delivery) > 0 {
		fmt.Fprintf(b, "\n📍 <b>Доставка:</b> %s", strings.Join(delivery, ", "))
	}
	if f.TotalPrice != "" {
		fmt.Fprintf(b, "\n💰 <b>Сума:</b> %s %s", f.TotalPrice, currency)
	}
}

// ToOrderDTO - представление для HTTP API.
func (r *Renderer) ToOrderDTO(order *entities.Order) dto.OrderDTO {
	var fields dto.OrderFields
	if payload, err := ParseShopifyOrder(order.RawJSON); err == nil {
		fields = ExtractOrderFields(payload)
	}
	return dto.OrderDTO{
		ID:                      order.ID,
		OrderNumber:             order.DisplayNumber(),
		Status:                  order.Status,
		CustomerName:            order.CustomerName(),
		CustomerPhone:           order.CustomerPhoneE164.String,
		Comment:                 order.Comment.Ptr(),
		ReminderAt:              order.ReminderAt.Ptr(),
		AwaitingPaymentSince:    order.AwaitingPaymentSince.Ptr(),
		ProcessedByOperatorName: order.ProcessedByOperatorName.Ptr(),
		CreatedAt:               order.CreatedAt,
		UpdatedAt:               order.UpdatedAt,
		Fields:                  fields,
		View:                    r.Render(order),
	}
}
