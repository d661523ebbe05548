package routes

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	tgcontroller "github.com/NaturesProfit7/Shopify-Order-Notifier/internal/controllers/telegram"
)

func runTelegramRouter(appCtx context.Context, e *echo.Echo, deps *Dependencies, logger *zap.Logger) {
	tgController := tgcontroller.NewTelegramController(
		deps.OrderService,
		deps.AuthService,
		deps.Fanout,
		deps.TelegramService,
		deps.CacheRepo,
		logger,
	)

	go tgController.StartCleanup(appCtx)

	e.POST("/webhooks/telegram", tgController.HandleTelegramWebhook)
}
