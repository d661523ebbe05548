package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/middleware"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/telegram"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/websocket"
)

type Loggers struct {
	Main     *zap.Logger
	Auth     *zap.Logger
	Order    *zap.Logger
	Webhook  *zap.Logger
	Telegram *zap.Logger
}

// Dependencies - собранные в main сервисы, которые нужны HTTP-слою.
type Dependencies struct {
	IngestionService services.IngestionServiceInterface
	OrderService     services.OrderServiceInterface
	AuthService      services.AuthServiceInterface
	ReportService    services.ReportServiceInterface
	Fanout           services.FanoutServiceInterface
	TelegramService  telegram.ServiceInterface
	CacheRepo        repositories.CacheRepositoryInterface
	Hub              *websocket.Hub
	JWTService       service.JWTService
	Location         *time.Location
}

func InitRouter(appCtx context.Context, e *echo.Echo, deps *Dependencies, loggers *Loggers) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(deps.JWTService, loggers.Auth)
	secureGroup := api.Group("", authMW.Auth)

	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	runWebhookRouter(e, deps.IngestionService, loggers.Webhook)
	runAuthRouter(api, deps.AuthService, loggers.Auth)
	runOrderRouter(secureGroup, deps.OrderService, deps.Fanout, loggers.Order)
	runReportRouter(secureGroup, deps.ReportService, deps.Location, loggers.Order)
	runWebSocketRouter(e, deps.Hub, deps.JWTService, loggers.Main)
	if deps.TelegramService != nil {
		runTelegramRouter(appCtx, e, deps, loggers.Telegram)
	}

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")
}
