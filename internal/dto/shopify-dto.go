package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexNumber - числовое поле Shopify, которое может прийти числом, строкой или мусором.
// Декодирование никогда не падает: непонятное значение остаётся пустым.
type FlexNumber string

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = ""
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*n = FlexNumber(bytes.TrimSpace([]byte(s)))
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*n = FlexNumber(data)
	}
	return nil
}

func (n FlexNumber) String() string { return string(n) }

func (n FlexNumber) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// ShopifyOrderPayload - поля вебхука orders/create, которые нам нужны.
// Остальное хранится как есть в raw_json.
type ShopifyOrderPayload struct {
	ID              FlexNumber        `json:"id"`
	OrderNumber     FlexNumber        `json:"order_number"`
	Name            string            `json:"name"`
	Phone           string            `json:"phone"`
	Email           string            `json:"email"`
	Note            string            `json:"note"`
	TotalPrice      string            `json:"total_price"`
	Currency        string            `json:"currency"`
	Customer        *ShopifyCustomer  `json:"customer"`
	ShippingAddress *ShopifyAddress   `json:"shipping_address"`
	BillingAddress  *ShopifyAddress   `json:"billing_address"`
	LineItems       []ShopifyLineItem `json:"line_items"`
}

type ShopifyCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type ShopifyAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

type ShopifyLineItem struct {
	Title    string      `json:"title"`
	Quantity FlexNumber `json:"quantity"`
	Price    string      `json:"price"`
}

// LineItem - позиция заказа для отрисовки.
type LineItem struct {
	Title    string `json:"title"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

// OrderFields - результат извлечения полей из вебхука.
type OrderFields struct {
	OrderNumber     string     `json:"order_number"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	PhoneE164       string     `json:"phone_e164"`
	LineItems       []LineItem `json:"line_items"`
	TotalItems      int        `json:"total_items"`
	TotalPrice      string     `json:"total_price"`
	Currency        string     `json:"currency"`
	DeliveryCity    string     `json:"delivery_city"`
	DeliveryAddress string     `json:"delivery_address"`
}

// WebhookResponseDTO - ответ на вебхук Shopify.
type WebhookResponseDTO struct {
	Status     string `json:"status"`
	ExternalID int64  `json:"externalId,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
