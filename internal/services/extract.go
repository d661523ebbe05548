package services

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

// ParseShopifyOrder декодирует payload насколько получится.
// Несовпадение типа отдельного поля не ошибка: поле остаётся пустым.
func ParseShopifyOrder(raw []byte) (*dto.ShopifyOrderPayload, error) {
	var payload dto.ShopifyOrderPayload
	err := json.Unmarshal(raw, &payload)
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return &dto.ShopifyOrderPayload{}, err
	}
	return &payload, nil
}

// ResolveExternalID: id из тела, иначе заголовок X-Shopify-Order-Id.
func ResolveExternalID(payload *dto.ShopifyOrderPayload, header string) (int64, error) {
	if payload != nil && payload.ID != "" {
		if id, err := strconv.ParseInt(payload.ID.String(), 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64); err == nil && id > 0 {
		return id, nil
	}
	return 0, apperrors.ErrMissingExternalID
}

// parties - с кем связываемся и куда везём.
type parties struct {
	contact  *dto.ShopifyAddress
	delivery *dto.ShopifyAddress
}

func normalizeAddressField(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func sameParty(a, b *dto.ShopifyAddress) bool {
	return normalizeAddressField(a.FirstName) == normalizeAddressField(b.FirstName) &&
		normalizeAddressField(a.LastName) == normalizeAddressField(b.LastName) &&
		normalizeAddressField(a.Address1) == normalizeAddressField(b.Address1) &&
		normalizeAddressField(a.City) == normalizeAddressField(b.City) &&
		normalizeAddressField(a.Zip) == normalizeAddressField(b.Zip)
}

// resolveParties: при разных адресах звоним получателю доставки (shipping), везём плательщику (billing).
func resolveParties(p *dto.ShopifyOrderPayload) parties {
	shipping, billing := p.ShippingAddress, p.BillingAddress
	switch {
	case shipping == nil && billing == nil:
		return parties{}
	case billing == nil:
		return parties{contact: shipping, delivery: shipping}
	case shipping == nil:
		return parties{contact: billing, delivery: billing}
	case sameParty(shipping, billing):
		return parties{contact: shipping, delivery: shipping}
	}
	return parties{contact: shipping, delivery: billing}
}

type nameRule func(p *dto.ShopifyOrderPayload, pt parties) (first, last string)

type phoneRule func(p *dto.ShopifyOrderPayload, pt parties) string

var nameRules = []nameRule{
	func(_ *dto.ShopifyOrderPayload, pt parties) (string, string) {
		if pt.contact == nil {
			return "", ""
		}
		return pt.contact.FirstName, pt.contact.LastName
	},
	func(p *dto.ShopifyOrderPayload, _ parties) (string, string) {
		if p.Customer == nil {
			return "", ""
		}
		return p.Customer.FirstName, p.Customer.LastName
	},
	func(p *dto.ShopifyOrderPayload, _ parties) (string, string) {
		if p.BillingAddress == nil {
			return "", ""
		}
		return p.BillingAddress.FirstName, p.BillingAddress.LastName
	},
}

var phoneRules = []phoneRule{
	func(_ *dto.ShopifyOrderPayload, pt parties) string {
		if pt.contact == nil {
			return ""
		}
		return pt.contact.Phone
	},
	func(p *dto.ShopifyOrderPayload, _ parties) string {
		if p.Customer == nil {
			return ""
		}
		return p.Customer.Phone
	},
	func(p *dto.ShopifyOrderPayload, _ parties) string { return p.Phone },
	func(p *dto.ShopifyOrderPayload, _ parties) string {
		if p.BillingAddress == nil {
			return ""
		}
		return p.BillingAddress.Phone
	},
}

// ExtractOrderFields - чистая функция: правила применяются по порядку, побеждает первое непустое.
func ExtractOrderFields(p *dto.ShopifyOrderPayload) dto.OrderFields {
	var fields dto.OrderFields
	if p == nil {
		return fields
	}
	pt := resolveParties(p)

	for _, rule := range nameRules {
		first, last := rule(p, pt)
		first, last = strings.TrimSpace(first), strings.TrimSpace(last)
		if first != "" || last != "" {
			fields.FirstName, fields.LastName = first, last
			break
		}
	}

	// Номер, который не приводится к E.164, считаем пустым и идём к следующему правилу.
	for _, rule := range phoneRules {
		if phone := utils.NormalizePhoneE164(rule(p, pt)); phone != "" {
			fields.PhoneE164 = phone
			break
		}
	}

	switch {
	case p.OrderNumber != "":
		fields.OrderNumber = p.OrderNumber.String()
	case strings.TrimSpace(p.Name) != "":
		fields.OrderNumber = strings.TrimPrefix(strings.TrimSpace(p.Name), "#")
	}

	fields.TotalItems = len(p.LineItems)
	for i, item := range p.LineItems {
		if i >= constants.CardLineItems {
			break
		}
		qty, _ := item.Quantity.Int64()
		fields.LineItems = append(fields.LineItems, dto.LineItem{
			Title:    strings.TrimSpace(item.Title),
			Quantity: qty,
			Price:    item.Price,
		})
	}

	fields.TotalPrice = strings.TrimSpace(p.TotalPrice)
	fields.Currency = strings.TrimSpace(p.Currency)
	if pt.delivery != nil {
		fields.DeliveryCity = strings.TrimSpace(pt.delivery.City)
		fields.DeliveryAddress = strings.TrimSpace(pt.delivery.Address1)
	}
	return fields
}
