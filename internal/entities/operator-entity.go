package entities

import (
	"strconv"
	"time"

	"github.com/aarondl/null/v8"
)

type Operator struct {
	ID             int64      `db:"id"`
	Login          string     `db:"login"`
	Name           string     `db:"name"`
	TelegramUserID null.Int64 `db:"telegram_user_id"`
	PasswordHash   string     `db:"password_hash"`
	IsActive       bool       `db:"is_active"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Actor - кто совершает действие и в каком "окне" (зрителе) он это видит.
// ViewerID исключается из рассылки: у автора изменение уже отрисовано локально.
type Actor struct {
	OperatorID int64
	Name       string
	ViewerID   string
}

// SystemActor используется для действий без оператора (вебхук, планировщик).
var SystemActor = Actor{Name: "system"}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
