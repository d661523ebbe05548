package errors

import "fmt"

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenNotYetValid     = fmt.Errorf("токен ещё не активен")

	// Авторизация
	ErrEmptyAuthHeader    = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader  = fmt.Errorf("неверный формат заголовка авторизации")
	ErrInvalidCredentials = fmt.Errorf("неверные учётные данные")
	ErrUnauthorized       = fmt.Errorf("неавторизован")
	ErrForbidden          = fmt.Errorf("доступ запрещён")

	// Контекст
	ErrOperatorNotFoundInContext = fmt.Errorf("оператор не найден в контексте запроса")

	// Вебхуки
	ErrInvalidSignature  = fmt.Errorf("неверная подпись вебхука")
	ErrMissingExternalID = fmt.Errorf("в событии нет идентификатора заказа")

	// Заказы
	ErrInvalidTransition = fmt.Errorf("недопустимый переход статуса")
	ErrOrderClosed       = fmt.Errorf("заказ уже закрыт")
	ErrInvalidReminder   = fmt.Errorf("недопустимый интервал напоминания")
	ErrEmptyComment      = fmt.Errorf("комментарий пуст")
	ErrCommentTooLong    = fmt.Errorf("комментарий слишком длинный")

	// Доставка уведомлений: получатель больше не существует (сообщение удалено, бот заблокирован).
	ErrTargetGone = fmt.Errorf("получатель уведомления недоступен")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
	ErrConflict   = fmt.Errorf("конфликт данных")
)

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError - ошибка, которую контроллер отдаёт клиенту как есть.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, context map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: context}
}
