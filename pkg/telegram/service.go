// Файл: pkg/telegram/service.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

const defaultAPIBase = "https://api.telegram.org"

// --- ОСНОВНОЙ ИНТЕРФЕЙС СЕРВИСА ---

type ServiceInterface interface {
	// SendMessageEx возвращает message_id отправленного сообщения.
	SendMessageEx(ctx context.Context, chatID int64, text string, options ...MessageOption) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error
	EditOrSendMessage(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string, showAlert bool) error
	SetWebhook(ctx context.Context, url string) error
}

// --- СТРУКТУРА СЕРВИСА ---

type Service struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewService - клиент Bot API. ratePerSecond ограничивает общую частоту запросов бота.
func NewService(botToken string, ratePerSecond float64, logger *zap.Logger) ServiceInterface {
	return NewServiceWithBaseURL(defaultAPIBase, botToken, ratePerSecond, logger)
}

func NewServiceWithBaseURL(apiBase, botToken string, ratePerSecond float64, logger *zap.Logger) *Service {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Service{
		botToken:   botToken,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// --- ОСНОВНЫЕ СТРУКТУРЫ ЗАПРОСОВ ---

type sendMessageRequest struct {
	ChatID                int64       `json:"chat_id"`
	Text                  string      `json:"text"`
	ParseMode             string      `json:"parse_mode,omitempty"`
	ReplyMarkup           interface{} `json:"reply_markup,omitempty"`
	DisableWebPagePreview bool        `json:"disable_web_page_preview,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type callbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type editMessageTextRequest struct {
	ChatID                int64       `json:"chat_id"`
	MessageID             int         `json:"message_id"`
	Text                  string      `json:"text"`
	ParseMode             string      `json:"parse_mode,omitempty"`
	ReplyMarkup           interface{} `json:"reply_markup,omitempty"`
	DisableWebPagePreview bool        `json:"disable_web_page_preview,omitempty"`
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type MessageOption func(*sendMessageRequest)

func WithKeyboard(rows [][]InlineKeyboardButton) MessageOption {
	return func(req *sendMessageRequest) {
		if len(rows) > 0 {
			req.ReplyMarkup = inlineKeyboardMarkup{InlineKeyboard: rows}
		}
	}
}

func WithHTML() MessageOption {
	return func(req *sendMessageRequest) {
		req.ParseMode = "HTML"
		req.DisableWebPagePreview = true
	}
}

// ResolveOptions возвращает parse_mode и клавиатуру, заданные опциями.
func ResolveOptions(options ...MessageOption) (parseMode string, keyboard [][]InlineKeyboardButton) {
	req := &sendMessageRequest{}
	for _, opt := range options {
		opt(req)
	}
	if markup, ok := req.ReplyMarkup.(inlineKeyboardMarkup); ok {
		keyboard = markup.InlineKeyboard
	}
	return req.ParseMode, keyboard
}

// APIError - ответ Telegram с ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API ошибка (%s): код %d, описание: %s", e.Method, e.Code, e.Description)
}

// Описания, после которых сообщение/чат уже не оживить.
var goneDescriptions = []string{
	"message to edit not found",
	"message can't be edited",
	"message to delete not found",
	"chat not found",
	"bot was blocked by the user",
	"user is deactivated",
	"bot was kicked",
}

func (e *APIError) isGone() bool {
	if e.Code == http.StatusForbidden {
		return true
	}
	desc := strings.ToLower(e.Description)
	for _, d := range goneDescriptions {
		if strings.Contains(desc, d) {
			return true
		}
	}
	return false
}

func (e *APIError) isNotModified() bool {
	return strings.Contains(strings.ToLower(e.Description), "message is not modified")
}

func (e *APIError) Unwrap() error {
	if e.isGone() {
		return apperrors.ErrTargetGone
	}
	return nil
}

func (s *Service) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error {
	if messageID == 0 {
		_, err := s.SendMessageEx(ctx, chatID, text, options...)
		return err
	}

	tempSendReq := &sendMessageRequest{}
	for _, opt := range options {
		opt(tempSendReq)
	}

	editReq := &editMessageTextRequest{
		ChatID:                chatID,
		MessageID:             messageID,
		Text:                  text,
		ParseMode:             tempSendReq.ParseMode,
		ReplyMarkup:           tempSendReq.ReplyMarkup,
		DisableWebPagePreview: tempSendReq.DisableWebPagePreview,
	}

	err := s.sendRequest(ctx, "editMessageText", editReq, nil)
	var apiErr *APIError
	// Повторная доставка той же отрисовки - это успех.
	if errors.As(err, &apiErr) && apiErr.isNotModified() {
		return nil
	}
	return err
}

func (s *Service) SendMessageEx(ctx context.Context, chatID int64, text string, options ...MessageOption) (int, error) {
	reqPayload := &sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	}

	for _, opt := range options {
		opt(reqPayload)
	}

	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := s.sendRequest(ctx, "sendMessage", reqPayload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (s *Service) EditOrSendMessage(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) (int, error) {
	if messageID == 0 {
		return s.SendMessageEx(ctx, chatID, text, options...)
	}
	err := s.EditMessageText(ctx, chatID, messageID, text, options...)
	if errors.Is(err, apperrors.ErrTargetGone) {
		return s.SendMessageEx(ctx, chatID, text, options...)
	}
	return messageID, err
}

func (s *Service) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}
	return s.sendRequest(ctx, "deleteMessage", deleteMessageRequest{ChatID: chatID, MessageID: messageID}, nil)
}

// Ответ на callback-кнопку
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string, showAlert bool) error {
	if callbackQueryID == "" {
		return fmt.Errorf("callbackQueryID не может быть пустым")
	}

	reqPayload := callbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
		ShowAlert:       showAlert,
	}
	return s.sendRequest(ctx, "answerCallbackQuery", reqPayload, nil)
}

func (s *Service) SetWebhook(ctx context.Context, url string) error {
	return s.sendRequest(ctx, "setWebhook", setWebhookRequest{
		URL:            url,
		AllowedUpdates: []string{"message", "callback_query"},
	}, nil)
}

// --- ВСПОМОГАТЕЛЬНЫЕ ФУНКЦИИ ---

func (s *Service) sendRequest(ctx context.Context, methodName string, payload interface{}, result interface{}) error {
	if s.botToken == "" {
		return fmt.Errorf("токен Telegram-бота не установлен")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ожидание лимита Telegram прервано: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/%s", s.apiBase, s.botToken, methodName)

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса в Telegram: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	s.logger.Debug("telegram запрос",
		zap.String("method", methodName),
		zap.ByteString("request", reqBody),
		zap.ByteString("response", body),
	)

	var telegramResp struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description,omitempty"`
		ErrorCode   int             `json:"error_code,omitempty"`
		Result      json.RawMessage `json:"result,omitempty"`
	}

	if err := json.Unmarshal(body, &telegramResp); err != nil {
		return fmt.Errorf("ошибка декодирования ответа Telegram API: %w", err)
	}

	if !telegramResp.OK {
		return &APIError{Method: methodName, Code: telegramResp.ErrorCode, Description: telegramResp.Description}
	}

	if result != nil && len(telegramResp.Result) > 0 {
		if err := json.Unmarshal(telegramResp.Result, result); err != nil {
			return fmt.Errorf("ошибка декодирования результата %s: %w", methodName, err)
		}
	}

	return nil
}

// EscapeHTML экранирует пользовательский текст для parse_mode=HTML.
func EscapeHTML(text string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(text)
}
