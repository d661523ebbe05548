package utils

import (
	"regexp"
	"strings"
)

const uaCountryCode = "380"

var nonDigitRegexp = regexp.MustCompile(`\D`)

// NormalizeUAPhoneNumber приводит номер к +380XXXXXXXXX или возвращает "".
func NormalizeUAPhoneNumber(phone string) string {
	digits := nonDigitRegexp.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, uaCountryCode):
		return "+" + digits
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "+" + uaCountryCode + digits[1:]
	}
	return ""
}

// NormalizePhoneE164 - украинский формат, иначе "+цифры" для номеров от 10 цифр.
func NormalizePhoneE164(phone string) string {
	if ua := NormalizeUAPhoneNumber(phone); ua != "" {
		return ua
	}
	digits := nonDigitRegexp.ReplaceAllString(phone, "")
	if len(digits) >= 10 && len(digits) <= 15 {
		return "+" + digits
	}
	return ""
}

// PrettyUAPhone: +380671234567 -> +38•067•123•45•67. Прочие номера без изменений.
func PrettyUAPhone(e164 string) string {
	if len(e164) != 13 || !strings.HasPrefix(e164, "+380") {
		return e164
	}
	tail := e164[4:]
	if nonDigitRegexp.MatchString(tail) {
		return e164
	}
	return "+38•0" + tail[0:2] + "•" + tail[2:5] + "•" + tail[5:7] + "•" + tail[7:9]
}
