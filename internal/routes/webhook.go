package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/controllers"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/websocket"
)

func runWebhookRouter(e *echo.Echo, ingestionService services.IngestionServiceInterface, logger *zap.Logger) {
	webhookCtrl := controllers.NewShopifyWebhookController(ingestionService, logger)

	e.POST("/webhooks/shopify/orders", webhookCtrl.HandleOrderWebhook)
}

func runWebSocketRouter(e *echo.Echo, hub *websocket.Hub, jwtSvc service.JWTService, logger *zap.Logger) {
	wsCtrl := controllers.NewWebSocketController(hub, jwtSvc, logger)

	e.GET("/ws", wsCtrl.ServeWs)
}
