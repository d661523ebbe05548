package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/events"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/metrics"
)

type IngestOutcome string

const (
	IngestAccepted  IngestOutcome = "accepted"
	IngestDuplicate IngestOutcome = "duplicate"
	IngestRejected  IngestOutcome = "rejected"
)

type IngestResult struct {
	Outcome    IngestOutcome
	ExternalID int64
	Reason     string
}

type IngestionServiceInterface interface {
	// Ingest: headerOrderID - запасной источник ID, proof - X-Shopify-Hmac-Sha256.
	Ingest(ctx context.Context, headerOrderID, proof string, rawBody []byte) (IngestResult, error)
}

type IngestionService struct {
	secret       string
	txManager    repositories.TxManagerInterface
	orderRepo    repositories.OrderRepositoryInterface
	historyRepo  repositories.OrderHistoryRepositoryInterface
	bus          eventbus.Publisher
	storeTimeout time.Duration
	logger       *zap.Logger
}

func NewIngestionService(
	secret string,
	txManager repositories.TxManagerInterface,
	orderRepo repositories.OrderRepositoryInterface,
	historyRepo repositories.OrderHistoryRepositoryInterface,
	bus eventbus.Publisher,
	storeTimeout time.Duration,
	logger *zap.Logger,
) IngestionServiceInterface {
	if storeTimeout <= 0 {
		storeTimeout = constants.DefaultStoreTTL
	}
	return &IngestionService{
		secret:       secret,
		txManager:    txManager,
		orderRepo:    orderRepo,
		historyRepo:  historyRepo,
		bus:          bus,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

func (s *IngestionService) Ingest(ctx context.Context, headerOrderID, proof string, rawBody []byte) (IngestResult, error) {
	if !VerifyShopifySignature(s.secret, rawBody, proof) {
		metrics.WebhookEventsTotal.WithLabelValues(string(IngestRejected)).Inc()
		s.logger.Warn("Вебхук Shopify отклонён: неверная подпись", zap.Int("bodySize", len(rawBody)))
		return IngestResult{Outcome: IngestRejected, Reason: "bad signature"}, nil
	}

	payload, parseErr := ParseShopifyOrder(rawBody)
	if parseErr != nil {
		s.logger.Warn("Тело вебхука не разобрано, сохраняем с пустыми полями", zap.Error(parseErr))
	}

	externalID, err := ResolveExternalID(payload, headerOrderID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		return IngestResult{}, err
	}

	fields := ExtractOrderFields(payload)
	order := &entities.Order{
		ID:                externalID,
		OrderNumber:       null.NewString(fields.OrderNumber, fields.OrderNumber != ""),
		Status:            constants.StatusNew,
		CustomerFirstName: null.NewString(fields.FirstName, fields.FirstName != ""),
		CustomerLastName:  null.NewString(fields.LastName, fields.LastName != ""),
		CustomerPhoneE164: null.NewString(fields.PhoneE164, fields.PhoneE164 != ""),
		RawJSON:           rawJSONValue(rawBody),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var inserted bool
	err = s.txManager.RunInTransaction(storeCtx, func(tx pgx.Tx) error {
		var err error
		inserted, err = s.orderRepo.InsertIfAbsent(storeCtx, tx, order)
		if err != nil || !inserted {
			return err
		}
		return s.historyRepo.CreateInTx(storeCtx, tx, &entities.StatusHistoryEntry{
			OrderID:      order.ID,
			NewStatus:    constants.StatusNew,
			OperatorName: null.StringFrom(entities.SystemActor.Name),
		})
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка сохранения заказа из вебхука", zap.Int64("orderID", externalID), zap.Error(err))
		return IngestResult{}, fmt.Errorf("сохранение заказа %d: %w", externalID, err)
	}

	if !inserted {
		metrics.WebhookEventsTotal.WithLabelValues(string(IngestDuplicate)).Inc()
		s.logger.Info("Повторный вебхук, заказ уже есть", zap.Int64("orderID", externalID))
		return IngestResult{Outcome: IngestDuplicate, ExternalID: externalID}, nil
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(IngestAccepted)).Inc()
	s.logger.Info("Новый заказ сохранён",
		zap.Int64("orderID", externalID),
		zap.String("orderNumber", fields.OrderNumber),
	)
	s.bus.Publish(ctx, events.OrderIngestedEvent{OrderID: externalID})

	return IngestResult{Outcome: IngestAccepted, ExternalID: externalID}, nil
}

// rawJSONValue: корректный JSON хранится как есть, иначе как JSON-строка.
func rawJSONValue(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	encoded, _ := json.Marshal(string(body))
	return encoded
}
