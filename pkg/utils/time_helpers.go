package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatAge форматирует возраст заказа для напоминаний: "1д 3г", "2г 15хв", "40хв".
func FormatAge(d time.Duration) string {
	if d < time.Minute {
		return "<1хв"
	}

	totalMinutes := int64(d / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes % (24 * 60)) / 60
	minutes := totalMinutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dд", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dг", hours))
	}
	// Минуты показываем только для возраста меньше суток
	if minutes > 0 && days == 0 {
		parts = append(parts, fmt.Sprintf("%dхв", minutes))
	}
	if len(parts) == 0 {
		parts = append(parts, "0хв")
	}
	return strings.Join(parts, " ")
}

// LoadLocation возвращает зону или UTC, если tzdata недоступна.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
