// Файл: main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/listeners"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/routes"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/scheduler"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/config"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/customvalidator"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/database/postgresql"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	applogger "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/logger"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/metrics"
	appmiddleware "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/middleware"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.Shopify.WebhookSecret == "" {
		logger.Warn("SHOPIFY_WEBHOOK_SECRET не задан: все вебхуки будут отклонены")
	}
	if cfg.Telegram.BotToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN не задан: уведомления в Telegram не отправляются")
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Echo и middleware
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(appmiddleware.RequestLogger(logger.Named("http")))

	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}
	e.Validator = utils.NewValidator(v)

	metrics.Register()

	// 3. Хранилища
	dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbConn.Close()

	if cfg.Postgres.MigrateOnStart {
		if err := postgresql.Migrate(dbConn); err != nil {
			logger.Fatal("Ошибка миграций", zap.Error(err))
		}
		logger.Info("Миграции применены")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(appCtx).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	loc := utils.LoadLocation(cfg.Reminder.Timezone)

	txManager := repositories.NewTxManager(dbConn)
	orderRepo := repositories.NewOrderRepository(dbConn, logger.Named("order_repo"))
	historyRepo := repositories.NewOrderHistoryRepository(dbConn)
	operatorRepo := repositories.NewOperatorRepository(dbConn)
	runRepo := repositories.NewSchedulerRunRepository(dbConn)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	viewStore, err := newViewStore(cfg.Fanout, redisClient, logger)
	if err != nil {
		logger.Fatal("Ошибка настройки хранилища зрителей", zap.Error(err))
	}

	// 4. Транспорт уведомлений
	bus := eventbus.New(logger.Named("eventbus"))
	hub := websocket.NewHub(logger.Named("ws"))
	go hub.Run(appCtx)

	tgService := telegram.NewService(cfg.Telegram.BotToken, cfg.Telegram.RateLimit, logger.Named("telegram"))

	// 5. Сервисы
	renderer := services.NewRenderer(loc)
	fanout := services.NewFanoutService(
		viewStore,
		orderRepo,
		[]services.ViewSender{
			services.NewTelegramViewSender(tgService),
			services.NewWebSocketViewSender(hub),
		},
		cfg.Fanout.Workers,
		cfg.StoreTimeout,
		logger.Named("fanout"),
	)
	engine := services.NewTransitionEngine(txManager, orderRepo, historyRepo, bus, logger.Named("transition"))
	orderService := services.NewOrderService(txManager, orderRepo, historyRepo, engine, renderer, bus, cfg.StoreTimeout, logger.Named("order"))
	ingestionService := services.NewIngestionService(cfg.Shopify.WebhookSecret, txManager, orderRepo, historyRepo, bus, cfg.StoreTimeout, logger.Named("ingestion"))
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, logger.Named("jwt"))
	authService := services.NewAuthService(operatorRepo, jwtSvc, logger.Named("auth"))
	reportService := services.NewReportService(orderRepo, loc, logger.Named("report"))

	listener := listeners.NewNotificationListener(fanout, orderRepo, tgService, renderer, cfg.Telegram.TargetChatID, logger.Named("listener"))
	listener.Register(bus)

	reminders := scheduler.NewReminderScheduler(cfg.Reminder, cfg.Telegram.TargetChatID, orderRepo, runRepo, tgService, fanout, renderer, logger.Named("scheduler"))

	// 6. Роуты
	routes.InitRouter(appCtx, e, &routes.Dependencies{
		IngestionService: ingestionService,
		OrderService:     orderService,
		AuthService:      authService,
		ReportService:    reportService,
		Fanout:           fanout,
		TelegramService:  tgService,
		CacheRepo:        cacheRepo,
		Hub:              hub,
		JWTService:       jwtSvc,
		Location:         loc,
	}, &routes.Loggers{
		Main:     logger,
		Auth:     logger.Named("auth"),
		Order:    logger.Named("order_api"),
		Webhook:  logger.Named("webhook"),
		Telegram: logger.Named("tg_bot"),
	})

	if err := reminders.Start(appCtx); err != nil {
		logger.Fatal("Не удалось запустить планировщик", zap.Error(err))
	}

	if cfg.Telegram.RegisterWebhook && cfg.Server.BaseURL != "" {
		go func() {
			webhookURL := strings.TrimSuffix(cfg.Server.BaseURL, "/") + "/webhooks/telegram"
			if err := tgService.SetWebhook(appCtx, webhookURL); err != nil {
				logger.Error("Не удалось зарегистрировать Telegram Webhook", zap.Error(err))
				return
			}
			logger.Info("✅ Telegram webhook зарегистрирован", zap.String("url", webhookURL))
		}()
	}

	// 7. Запуск и корректная остановка
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("🚀 Сервер запущен", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-appCtx.Done()
	logger.Info("Получен сигнал остановки")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP-сервера", zap.Error(err))
	}
	if err := reminders.Stop(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки планировщика", zap.Error(err))
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Не все обработчики событий завершились", zap.Error(err))
	}
	logger.Info("Сервер остановлен")
}

func newViewStore(cfg config.FanoutConfig, redisClient *redis.Client, logger *zap.Logger) (repositories.ViewStoreInterface, error) {
	switch cfg.Backend {
	case "redis":
		return repositories.NewRedisViewStore(redisClient, cfg.ViewTTL, logger.Named("view_store")), nil
	case "memory":
		return repositories.NewMemoryViewStore(), nil
	default:
		return nil, fmt.Errorf("неизвестный FANOUT_BACKEND %q (ожидается memory или redis)", cfg.Backend)
	}
}
