package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

// ==================== TELEGRAM ====================

// TelegramMessage - отправленное или отредактированное сообщение.
type TelegramMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	ParseMode string
	Keyboard  [][]telegram.InlineKeyboardButton
}

type CallbackAnswer struct {
	QueryID string
	Text    string
	Alert   bool
}

// FakeTelegram записывает вызовы Bot API.
type FakeTelegram struct {
	mu      sync.Mutex
	nextID  int
	Sent    []TelegramMessage
	Edited  []TelegramMessage
	Answers []CallbackAnswer
	Webhook string

	SendErr error
	EditErr error
	// BeforeSend, если задан, вызывается в начале каждой отправки.
	BeforeSend func()
}

var _ telegram.ServiceInterface = (*FakeTelegram)(nil)

func NewFakeTelegram() *FakeTelegram {
	return &FakeTelegram{nextID: 100}
}

func (f *FakeTelegram) SendMessageEx(_ context.Context, chatID int64, text string, options ...telegram.MessageOption) (int, error) {
	if f.BeforeSend != nil {
		f.BeforeSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return 0, f.SendErr
	}
	f.nextID++
	parseMode, keyboard := telegram.ResolveOptions(options...)
	f.Sent = append(f.Sent, TelegramMessage{ChatID: chatID, MessageID: f.nextID, Text: text, ParseMode: parseMode, Keyboard: keyboard})
	return f.nextID, nil
}

func (f *FakeTelegram) EditMessageText(_ context.Context, chatID int64, messageID int, text string, options ...telegram.MessageOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EditErr != nil {
		return f.EditErr
	}
	parseMode, keyboard := telegram.ResolveOptions(options...)
	f.Edited = append(f.Edited, TelegramMessage{ChatID: chatID, MessageID: messageID, Text: text, ParseMode: parseMode, Keyboard: keyboard})
	return nil
}

func (f *FakeTelegram) EditOrSendMessage(ctx context.Context, chatID int64, messageID int, text string, options ...telegram.MessageOption) (int, error) {
	if messageID == 0 {
		return f.SendMessageEx(ctx, chatID, text, options...)
	}
	return messageID, f.EditMessageText(ctx, chatID, messageID, text, options...)
}

func (f *FakeTelegram) DeleteMessage(context.Context, int64, int) error { return nil }

func (f *FakeTelegram) AnswerCallbackQuery(_ context.Context, callbackQueryID string, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answers = append(f.Answers, CallbackAnswer{QueryID: callbackQueryID, Text: text, Alert: showAlert})
	return nil
}

func (f *FakeTelegram) SetWebhook(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Webhook = url
	return nil
}

func (f *FakeTelegram) SentMessages() []TelegramMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TelegramMessage(nil), f.Sent...)
}

func (f *FakeTelegram) EditedMessages() []TelegramMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TelegramMessage(nil), f.Edited...)
}

func (f *FakeTelegram) CallbackAnswers() []CallbackAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CallbackAnswer(nil), f.Answers...)
}

// ==================== ОПЕРАТОРЫ ====================

type MemoryOperators struct {
	mu     sync.Mutex
	byID   map[int64]*entities.Operator
	nextID int64
}

var _ repositories.OperatorRepositoryInterface = (*MemoryOperators)(nil)

func NewMemoryOperators(ops ...*entities.Operator) *MemoryOperators {
	m := &MemoryOperators{byID: make(map[int64]*entities.Operator)}
	for _, op := range ops {
		_, _ = m.Upsert(context.Background(), nil, op)
	}
	return m
}

func (m *MemoryOperators) find(match func(op *entities.Operator) bool) (*entities.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.byID {
		if match(op) {
			c := *op
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *MemoryOperators) FindByID(_ context.Context, _ pgx.Tx, id int64) (*entities.Operator, error) {
	return m.find(func(op *entities.Operator) bool { return op.ID == id })
}

func (m *MemoryOperators) FindByLogin(_ context.Context, _ pgx.Tx, login string) (*entities.Operator, error) {
	return m.find(func(op *entities.Operator) bool { return op.Login == login })
}

func (m *MemoryOperators) FindByTelegramUserID(_ context.Context, _ pgx.Tx, telegramUserID int64) (*entities.Operator, error) {
	return m.find(func(op *entities.Operator) bool {
		return op.IsActive && op.TelegramUserID.Valid && op.TelegramUserID.Int64 == telegramUserID
	})
}

func (m *MemoryOperators) Upsert(_ context.Context, _ pgx.Tx, op *entities.Operator) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.byID {
		if existing.Login == op.Login {
			op.ID = id
			c := *op
			m.byID[id] = &c
			return id, nil
		}
	}
	m.nextID++
	op.ID = m.nextID
	c := *op
	m.byID[op.ID] = &c
	return op.ID, nil
}

// ==================== КЕШ ====================

// MemoryCache - кеш без учёта TTL.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

var _ repositories.CacheRepositoryInterface = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]string)}
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case string:
		c.values[key] = v
	case []byte:
		c.values[key] = string(v)
	default:
		c.values[key] = fmt.Sprint(v)
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

// ==================== ШИНА ====================

// RecordingBus запоминает опубликованные события, слушателей не вызывает.
type RecordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

var _ eventbus.Publisher = (*RecordingBus)(nil)

func (b *RecordingBus) Publish(_ context.Context, event eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *RecordingBus) Events() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.events...)
}
