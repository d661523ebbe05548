package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
)

const reportSheet = "Замовлення"

var reportHeaders = []string{
	"ID", "Номер", "Дата", "Статус", "Клієнт", "Телефон", "Сума", "Валюта",
	"Місто", "Адреса", "Коментар", "Менеджер", "Очікує оплату з",
}

type ReportServiceInterface interface {
	// BuildOrdersReport - заказы, созданные в [from, to).
	BuildOrdersReport(ctx context.Context, from, to time.Time) (*excelize.File, int, error)
}

type ReportService struct {
	orderRepo repositories.OrderRepositoryInterface
	loc       *time.Location
	logger    *zap.Logger
}

func NewReportService(orderRepo repositories.OrderRepositoryInterface, loc *time.Location, logger *zap.Logger) ReportServiceInterface {
	return &ReportService{orderRepo: orderRepo, loc: loc, logger: logger}
}

func (s *ReportService) BuildOrdersReport(ctx context.Context, from, to time.Time) (*excelize.File, int, error) {
	orders, err := s.orderRepo.ListCreatedBetween(ctx, nil, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("выборка заказов для отчёта: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, 0, err
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeaders); err != nil {
		return nil, 0, err
	}
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(reportSheet, "A1", "M1", style)

	for i, o := range orders {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := s.rowToSlice(o)
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return nil, 0, err
		}
	}
	_ = f.SetColWidth(reportSheet, "C", "C", 18)
	_ = f.SetColWidth(reportSheet, "E", "F", 22)
	_ = f.SetColWidth(reportSheet, "I", "K", 30)
	_ = f.SetColWidth(reportSheet, "L", "M", 20)

	s.logger.Info("Отчёт по заказам сформирован", zap.Int("rows", len(orders)))
	return f, len(orders), nil
}

func (s *ReportService) rowToSlice(o *entities.Order) []interface{} {
	const layout = "02.01.2006 15:04"
	var fields dto.OrderFields
	if payload, err := ParseShopifyOrder(o.RawJSON); err == nil {
		fields = ExtractOrderFields(payload)
	}
	var awaitingSince string
	if o.AwaitingPaymentSince.Valid {
		awaitingSince = o.AwaitingPaymentSince.Time.In(s.loc).Format(layout)
	}
	return []interface{}{
		o.ID,
		o.DisplayNumber(),
		o.CreatedAt.In(s.loc).Format(layout),
		constants.StatusTitle(o.Status),
		o.CustomerName(),
		o.CustomerPhoneE164.String,
		fields.TotalPrice,
		fields.Currency,
		fields.DeliveryCity,
		fields.DeliveryAddress,
		o.Comment.String,
		o.ProcessedByOperatorName.String,
		awaitingSince,
	}
}
