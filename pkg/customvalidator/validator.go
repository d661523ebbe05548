// Файл: pkg/customvalidator/validators.go

package customvalidator

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

var uaPhoneRegex = regexp.MustCompile(`^\+380\d{9}$`)

// RegisterCustomValidations регистрирует наши правила в переданном валидаторе.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("e164_UA", isUAPhoneNumber); err != nil {
		return err
	}
	if err := v.RegisterValidation("order_status", isOrderStatus); err != nil {
		return err
	}
	if err := v.RegisterValidation("reminder_minutes", isReminderMinutes); err != nil {
		return err
	}
	return nil
}

func isUAPhoneNumber(fl validator.FieldLevel) bool {
	return uaPhoneRegex.MatchString(fl.Field().String())
}

func isOrderStatus(fl validator.FieldLevel) bool {
	return constants.IsKnownStatus(constants.OrderStatus(fl.Field().String()))
}

func isReminderMinutes(fl validator.FieldLevel) bool {
	return constants.IsReminderOption(int(fl.Field().Int()))
}
