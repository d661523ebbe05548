package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const defaultReportDays = 30

type ReportController struct {
	reportService services.ReportServiceInterface
	loc           *time.Location
	now           func() time.Time
	logger        *zap.Logger
}

func NewReportController(reportService services.ReportServiceInterface, loc *time.Location, logger *zap.Logger) *ReportController {
	return &ReportController{reportService: reportService, loc: loc, now: time.Now, logger: logger}
}

// ExportOrders - XLSX по заказам, созданным в [from, to] (даты включительно, по местному времени).
func (c *ReportController) ExportOrders(ctx echo.Context) error {
	var query dto.ExportQueryDTO
	if err := ctx.Bind(&query); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&query); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	from, to, err := c.parseRange(query)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	c.logger.Debug("Запрос на отчет", zap.Time("from", from), zap.Time("to", to))

	f, rows, err := c.reportService.BuildOrdersReport(ctx.Request().Context(), from, to)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	defer f.Close()

	c.logger.Info("Отчет выгружен", zap.Int("rows", rows))
	return c.respondWithXLSX(ctx, f, from, to)
}

func (c *ReportController) parseRange(query dto.ExportQueryDTO) (time.Time, time.Time, error) {
	now := c.now().In(c.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)

	to := today
	if query.To != "" {
		t, err := time.ParseInLocation("2006-01-02", query.To, c.loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewInvalidInputError("некорректная дата to: %q", query.To)
		}
		to = t
	}
	from := to.AddDate(0, 0, -defaultReportDays)
	if query.From != "" {
		t, err := time.ParseInLocation("2006-01-02", query.From, c.loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.NewInvalidInputError("некорректная дата from: %q", query.From)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, apperrors.NewInvalidInputError("from позже to")
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (c *ReportController) respondWithXLSX(ctx echo.Context, f *excelize.File, from, to time.Time) error {
	fileName := fmt.Sprintf("orders_%s_%s.xlsx", from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
