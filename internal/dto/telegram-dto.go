package dto

import (
	"encoding/json"
	"fmt"
)

// Режимы диалога в Telegram.
const (
	ModeAwaitingComment = "awaiting_comment"
)

// TelegramState - состояние диалога оператора в чате, живёт в кэше с TTL.
type TelegramState struct {
	Mode       string `json:"mode"`
	OrderID    int64  `json:"order_id"`
	MessageID  int    `json:"message_id"`
	OperatorID int64  `json:"operator_id"`
}

// NewCommentState - ожидание текста комментария к заказу; MessageID - карточка, которую перерисуем.
func NewCommentState(orderID int64, messageID int, operatorID int64) *TelegramState {
	return &TelegramState{
		Mode:       ModeAwaitingComment,
		OrderID:    orderID,
		MessageID:  messageID,
		OperatorID: operatorID,
	}
}

func (s *TelegramState) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return string(data), nil
}

func FromJSON(data string) (*TelegramState, error) {
	var state TelegramState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}
