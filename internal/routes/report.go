package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/controllers"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
)

func runReportRouter(
	secureGroup *echo.Group,
	reportService services.ReportServiceInterface,
	loc *time.Location,
	logger *zap.Logger,
) {
	reportController := controllers.NewReportController(reportService, loc, logger)

	secureGroup.GET("/orders/export", reportController.ExportOrders)
}
