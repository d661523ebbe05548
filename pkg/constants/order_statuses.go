package constants

// OrderStatus - код статуса заказа (совпадает со значением в БД).
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	StatusPaid            OrderStatus = "paid"
	StatusCancelled       OrderStatus = "cancelled"
)

// Финальные статусы
var FinalStatuses = []OrderStatus{
	StatusPaid,
	StatusCancelled,
}

// AllStatuses в порядке жизненного цикла.
var AllStatuses = []OrderStatus{
	StatusNew,
	StatusAwaitingPayment,
	StatusPaid,
	StatusCancelled,
}

// Граф переходов фиксирован.
var transitions = map[OrderStatus][]OrderStatus{
	StatusNew:             {StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPayment: {StatusPaid, StatusCancelled},
}

func (s OrderStatus) String() string {
	return string(s)
}

// Функция-проверка
func IsFinalStatus(s OrderStatus) bool {
	for _, f := range FinalStatuses {
		if f == s {
			return true
		}
	}
	return false
}

func IsKnownStatus(s OrderStatus) bool {
	for _, known := range AllStatuses {
		if known == s {
			return true
		}
	}
	return false
}

// CanTransition сообщает, является ли (from -> to) ребром графа статусов.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses возвращает допустимые статусы из текущего.
func NextStatuses(from OrderStatus) []OrderStatus {
	return transitions[from]
}

func StatusTitle(s OrderStatus) string {
	switch s {
	case StatusNew:
		return "Новий"
	case StatusAwaitingPayment:
		return "Очікує оплату"
	case StatusPaid:
		return "Оплачено"
	case StatusCancelled:
		return "Скасовано"
	default:
		return string(s)
	}
}

func StatusEmoji(s OrderStatus) string {
	switch s {
	case StatusNew:
		return "🆕"
	case StatusAwaitingPayment:
		return "⏳"
	case StatusPaid:
		return "✅"
	case StatusCancelled:
		return "❌"
	default:
		return "📦"
	}
}
