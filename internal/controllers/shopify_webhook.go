package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const (
	headerShopifyHmac    = "X-Shopify-Hmac-Sha256"
	headerShopifyOrderID = "X-Shopify-Order-Id"

	maxWebhookBodySize = 2 << 20
)

type ShopifyWebhookController struct {
	ingestionService services.IngestionServiceInterface
	logger           *zap.Logger
}

func NewShopifyWebhookController(ingestionService services.IngestionServiceInterface, logger *zap.Logger) *ShopifyWebhookController {
	return &ShopifyWebhookController{ingestionService: ingestionService, logger: logger}
}

// HandleOrderWebhook - подпись считается по сырому телу, поэтому без Bind.
func (c *ShopifyWebhookController) HandleOrderWebhook(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBodySize))
	if err != nil {
		c.logger.Warn("Не удалось прочитать тело вебхука", zap.Error(err))
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	result, err := c.ingestionService.Ingest(
		ctx.Request().Context(),
		ctx.Request().Header.Get(headerShopifyOrderID),
		ctx.Request().Header.Get(headerShopifyHmac),
		body,
	)
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingExternalID) {
			return ctx.JSON(http.StatusBadRequest, dto.WebhookResponseDTO{Status: "invalid", Reason: err.Error()})
		}
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if result.Outcome == services.IngestRejected {
		return ctx.JSON(http.StatusUnauthorized, dto.WebhookResponseDTO{Status: string(result.Outcome), Reason: result.Reason})
	}
	return ctx.JSON(http.StatusOK, dto.WebhookResponseDTO{Status: string(result.Outcome), ExternalID: result.ExternalID})
}
