// internal/controllers/telegram/controller.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
)

const (
	maxMessageAge         = 2 * time.Minute
	commandCooldown       = 1000 * time.Millisecond // 1 сек между командами
	callbackCooldown      = 500 * time.Millisecond  // 0.5 сек между кликами по одной кнопке
	stateExpiration       = 30 * time.Minute
	goroutineTimeout      = 45 * time.Second
	maxConcurrentRequests = 50
)

type TelegramController struct {
	orderService services.OrderServiceInterface
	authService  services.AuthServiceInterface
	fanout       services.FanoutServiceInterface
	tgService    telegram.ServiceInterface
	cacheRepo    repositories.CacheRepositoryInterface
	deduplicator *RequestDeduplicator
	logger       *zap.Logger

	sem chan struct{}
	// dispatch запускает обработку апдейта (по умолчанию в отдельной горутине).
	dispatch func(func())
}

func NewTelegramController(
	orderService services.OrderServiceInterface,
	authService services.AuthServiceInterface,
	fanout services.FanoutServiceInterface,
	tgService telegram.ServiceInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	logger *zap.Logger,
) *TelegramController {
	return &TelegramController{
		orderService: orderService,
		authService:  authService,
		fanout:       fanout,
		tgService:    tgService,
		cacheRepo:    cacheRepo,
		deduplicator: NewRequestDeduplicator(),
		logger:       logger,
		sem:          make(chan struct{}, maxConcurrentRequests),
		dispatch:     func(f func()) { go f() },
	}
}

// HandleTelegramWebhook всегда отвечает 200: Telegram не должен повторять апдейт.
func (c *TelegramController) HandleTelegramWebhook(ctx echo.Context) error {
	var update TelegramUpdate
	if err := ctx.Bind(&update); err != nil {
		c.logger.Warn("Не удалось разобрать апдейт Telegram", zap.Error(err))
		return ctx.NoContent(http.StatusOK)
	}

	if !c.isMessageRecent(&update) {
		return ctx.NoContent(http.StatusOK)
	}

	if query := update.CallbackQuery; query != nil {
		if !c.deduplicator.TryAcquire(query.From.ID, "cb:"+query.Data, callbackCooldown) {
			c.dispatch(func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), goroutineTimeout)
				defer cancel()
				_ = c.tgService.AnswerCallbackQuery(bgCtx, query.ID, "", false)
			})
			return ctx.NoContent(http.StatusOK)
		}
		c.dispatch(func() { c.handleCallbackQueryAsync(query) })
	}

	if msg := update.Message; msg != nil {
		if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") &&
			!c.deduplicator.TryAcquire(msg.From.ID, "cmd", commandCooldown) {
			return ctx.NoContent(http.StatusOK)
		}
		c.dispatch(func() { c.handleMessageAsync(msg) })
	}
	return ctx.NoContent(http.StatusOK)
}

// ==================== АСИНХРОННАЯ ОБРАБОТКА ====================
func (c *TelegramController) handleCallbackQueryAsync(query *TelegramCallbackQuery) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	defer c.recoverPanic("handleCallbackQueryAsync")
	bgCtx, cancel := context.WithTimeout(context.Background(), goroutineTimeout)
	defer cancel()

	reply, err := c.handleCallbackQuery(bgCtx, query)
	if err != nil {
		c.logger.Error("Ошибка обработки callback", zap.String("data", query.Data), zap.Error(err))
		reply = callbackReply{text: "❌ Внутрішня помилка, спробуйте пізніше", alert: true}
	}
	if err := c.tgService.AnswerCallbackQuery(bgCtx, query.ID, reply.text, reply.alert); err != nil {
		c.logger.Debug("Не удалось ответить на callback", zap.Error(err))
	}
}

func (c *TelegramController) handleMessageAsync(msg *TelegramMessage) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	defer c.recoverPanic("handleMessageAsync")
	bgCtx, cancel := context.WithTimeout(context.Background(), goroutineTimeout)
	defer cancel()

	if err := c.handleMessage(bgCtx, msg); err != nil {
		c.logger.Error("Ошибка обработки сообщения", zap.Int64("chatID", msg.Chat.ID), zap.Error(err))
		_ = c.sendInternalError(bgCtx, msg.Chat.ID)
	}
}

func (c *TelegramController) handleMessage(ctx context.Context, msg *TelegramMessage) error {
	operator, ok := c.authorize(ctx, msg.From.ID)
	if !ok {
		return nil
	}
	chatID := msg.Chat.ID
	actor := actorFor(operator, chatID)
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		return c.handleCommand(ctx, msg.Chat, msg.From.ID, text)
	}

	// В общем чате комментарий ждём только от того, кто нажал кнопку.
	state, err := c.getUserState(ctx, chatID, msg.From.ID)
	if err != nil {
		return err
	}
	if state != nil && state.Mode == dto.ModeAwaitingComment && state.OperatorID == operator.ID {
		return c.handleCommentInput(ctx, chatID, msg.From.ID, state, text, actor)
	}
	return nil
}

// ==================== СЛУЖЕБНЫЕ ФУНКЦИИ ====================

// authorize - апдейты от не-операторов молча игнорируются.
func (c *TelegramController) authorize(ctx context.Context, telegramUserID int64) (*entities.Operator, bool) {
	op, err := c.authService.OperatorByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			c.logger.Debug("Апдейт от пользователя, не являющегося оператором", zap.Int64("telegramUserID", telegramUserID))
		} else {
			c.logger.Error("Ошибка поиска оператора", zap.Int64("telegramUserID", telegramUserID), zap.Error(err))
		}
		return nil, false
	}
	return op, true
}

func actorFor(op *entities.Operator, chatID int64) entities.Actor {
	return entities.Actor{
		OperatorID: op.ID,
		Name:       op.Name,
		ViewerID:   fmt.Sprintf(constants.ViewerChatFormat, chatID),
	}
}

// getUserState возвращает nil, если диалог не начат или состояние истекло.
func (c *TelegramController) getUserState(ctx context.Context, chatID, userID int64) (*dto.TelegramState, error) {
	stateJSON, err := c.cacheRepo.Get(ctx, stateKey(chatID, userID))
	if errors.Is(err, apperrors.ErrNotFound) || (err == nil && stateJSON == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение состояния чата %d: %w", chatID, err)
	}
	state, err := dto.FromJSON(stateJSON)
	if err != nil {
		c.logger.Warn("Повреждённое состояние чата, сбрасываем", zap.Int64("chatID", chatID), zap.Error(err))
		_ = c.clearUserState(ctx, chatID, userID)
		return nil, nil
	}
	return state, nil
}

func (c *TelegramController) setUserState(ctx context.Context, chatID, userID int64, state *dto.TelegramState) error {
	js, err := state.ToJSON()
	if err != nil {
		c.logger.Error("Ошибка сериализации состояния", zap.Error(err))
		return err
	}
	return c.cacheRepo.Set(ctx, stateKey(chatID, userID), js, stateExpiration)
}

func (c *TelegramController) clearUserState(ctx context.Context, chatID, userID int64) error {
	return c.cacheRepo.Del(ctx, stateKey(chatID, userID))
}

func stateKey(chatID, userID int64) string {
	return fmt.Sprintf(constants.CacheKeyTelegramState, chatID, userID)
}

// Нажатия кнопок свежие всегда: карточка может висеть часами.
// Текст старше двух минут - хвост, накопившийся пока бот лежал.
func (c *TelegramController) isMessageRecent(update *TelegramUpdate) bool {
	if update.CallbackQuery != nil {
		return true
	}
	if update.Message != nil && update.Message.Date > 0 {
		if time.Since(time.Unix(update.Message.Date, 0)) > maxMessageAge {
			return false
		}
	}
	return true
}

func (c *TelegramController) recoverPanic(funcName string) {
	if r := recover(); r != nil {
		c.logger.Error("PANIC в горутине",
			zap.String("function", funcName),
			zap.Any("panic", r),
			zap.Stack("stacktrace"))
	}
}

func (c *TelegramController) sendInternalError(ctx context.Context, chatID int64) error {
	_, err := c.tgService.SendMessageEx(ctx, chatID, "❌ Внутрішня помилка. Спробуйте пізніше.")
	return err
}

// showCard рисует карточку в сообщении и регистрирует чат зрителем заказа.
func (c *TelegramController) showCard(ctx context.Context, chatID int64, messageID int, view dto.OrderView) error {
	mid, err := c.tgService.EditOrSendMessage(ctx, chatID, messageID, view.Text,
		telegram.WithHTML(), telegram.WithKeyboard(services.OrderKeyboard(view)))
	if err != nil {
		return fmt.Errorf("отрисовка карточки заказа %d: %w", view.OrderID, err)
	}

	handle := entities.NotificationHandle{Channel: constants.ChannelTelegram, ChatID: chatID, MessageID: mid}
	viewerID := fmt.Sprintf(constants.ViewerChatFormat, chatID)
	if err := c.fanout.RegisterView(ctx, view.OrderID, viewerID, handle); err != nil {
		c.logger.Warn("Не удалось зарегистрировать зрителя", zap.Int64("orderID", view.OrderID), zap.String("viewerID", viewerID), zap.Error(err))
	}
	return nil
}

func (c *TelegramController) StartCleanup(ctx context.Context) {
	c.logger.Info("Запуск фоновой очистки дедупликатора")
	c.deduplicator.Cleanup(ctx, time.Minute)
	c.logger.Info("Фоновая очистка остановлена")
}

// ==================== ТИПЫ ====================
type TelegramUpdate struct {
	UpdateID      int                    `json:"update_id"`
	Message       *TelegramMessage       `json:"message"`
	CallbackQuery *TelegramCallbackQuery `json:"callback_query"`
}

type TelegramMessage struct {
	MessageID int          `json:"message_id"`
	From      TelegramUser `json:"from"`
	Chat      TelegramChat `json:"chat"`
	Text      string       `json:"text"`
	Date      int64        `json:"date"`
}

type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type TelegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type TelegramCallbackQuery struct {
	ID      string           `json:"id"`
	From    TelegramUser     `json:"from"`
	Message *TelegramMessage `json:"message"`
	Data    string           `json:"data"`
}
