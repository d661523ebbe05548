package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/controllers"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
)

func runOrderRouter(secureGroup *echo.Group, orderService services.OrderServiceInterface, fanout services.FanoutServiceInterface, logger *zap.Logger) {
	orderCtrl := controllers.NewOrderController(orderService, fanout, logger)
	{
		secureGroup.GET("/orders", orderCtrl.GetOrders)
		secureGroup.GET("/orders/stats", orderCtrl.GetStats)
		secureGroup.GET("/orders/:id", orderCtrl.FindOrder)
		secureGroup.GET("/orders/:id/history", orderCtrl.GetHistory)
		secureGroup.POST("/orders/:id/transition", orderCtrl.Transition)
		secureGroup.POST("/orders/:id/comment", orderCtrl.Comment)
		secureGroup.POST("/orders/:id/reminder", orderCtrl.SetReminder)
		secureGroup.DELETE("/orders/:id/view", orderCtrl.CloseView)
	}
}
