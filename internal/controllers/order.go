package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const defaultListLimit = 20

type OrderController struct {
	orderService services.OrderServiceInterface
	fanout       services.FanoutServiceInterface
	logger       *zap.Logger
}

func NewOrderController(
	orderService services.OrderServiceInterface,
	fanout services.FanoutServiceInterface,
	logger *zap.Logger,
) *OrderController {
	return &OrderController{
		orderService: orderService,
		fanout:       fanout,
		logger:       logger,
	}
}

// actorFromCtx - оператор из JWT; его "окно" - websocket-канал.
func (c *OrderController) actorFromCtx(ctx echo.Context) (entities.Actor, error) {
	reqCtx := ctx.Request().Context()
	operatorID, err := utils.GetOperatorIDFromCtx(reqCtx)
	if err != nil {
		return entities.Actor{}, err
	}
	return entities.Actor{
		OperatorID: operatorID,
		Name:       utils.GetOperatorNameFromCtx(reqCtx),
		ViewerID:   fmt.Sprintf(constants.ViewerWebSocketFormat, operatorID),
	}, nil
}

func parseOrderID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("некорректный ID заказа: %q", ctx.Param("id"))
	}
	return id, nil
}

func (c *OrderController) GetOrders(ctx echo.Context) error {
	var query dto.OrderListQueryDTO
	if err := ctx.Bind(&query); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&query); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if query.Limit == 0 {
		query.Limit = defaultListLimit
	}

	orders, total, err := c.orderService.List(ctx.Request().Context(), repositories.OrderListFilter{
		PendingOnly: query.Pending,
		Offset:      query.Offset,
		Limit:       query.Limit,
	})
	if err != nil {
		c.logger.Error("Ошибка при получении списка заказов", zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	renderer := c.orderService.Renderer()
	items := make([]dto.OrderDTO, 0, len(orders))
	for _, o := range orders {
		items = append(items, renderer.ToOrderDTO(o))
	}
	return ctx.JSON(http.StatusOK, dto.OrderListResponseDTO{
		Status:     true,
		Message:    "Заказы получены",
		Data:       items,
		Pagination: dto.NewPagination(total, query.Limit, query.Offset),
	})
}

// FindOrder отдаёт заказ и подписывает websocket-канал оператора на его изменения.
func (c *OrderController) FindOrder(ctx echo.Context) error {
	actor, err := c.actorFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	reqCtx := ctx.Request().Context()
	order, _, err := c.orderService.View(reqCtx, orderID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	handle := entities.NotificationHandle{Channel: constants.ChannelWebSocket, OperatorID: actor.OperatorID}
	if err := c.fanout.RegisterView(reqCtx, orderID, actor.ViewerID, handle); err != nil {
		c.logger.Warn("Не удалось зарегистрировать зрителя", zap.Int64("orderID", orderID), zap.Error(err))
	}
	return utils.SuccessResponse(ctx, c.orderService.Renderer().ToOrderDTO(order), "Заказ получен", http.StatusOK)
}

func (c *OrderController) CloseView(ctx echo.Context) error {
	actor, err := c.actorFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.fanout.Unregister(ctx.Request().Context(), orderID, actor.ViewerID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *OrderController) GetHistory(ctx echo.Context) error {
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	entries, err := c.orderService.History(ctx.Request().Context(), orderID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res := make([]dto.StatusHistoryDTO, 0, len(entries))
	for _, e := range entries {
		res = append(res, dto.StatusHistoryDTO{
			ID:           e.ID,
			OldStatus:    e.OldStatus.Ptr(),
			NewStatus:    e.NewStatus,
			OperatorID:   e.OperatorID.Ptr(),
			OperatorName: e.OperatorName.Ptr(),
			Comment:      e.Comment.Ptr(),
			CreatedAt:    e.CreatedAt,
		})
	}
	return utils.SuccessResponse(ctx, res, "История заказа получена", http.StatusOK)
}

func (c *OrderController) Transition(ctx echo.Context) error {
	actor, err := c.actorFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.TransitionRequestDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	reply, err := c.orderService.Transition(ctx.Request().Context(), orderID, payload.Status, payload.ExpectedStatus, actor)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res := dto.TransitionResponseDTO{Outcome: string(reply.Result.Outcome)}
	if reply.Order != nil {
		orderDTO := c.orderService.Renderer().ToOrderDTO(reply.Order)
		res.Order = &orderDTO
	}

	switch reply.Result.Outcome {
	case services.TransitionApplied:
		return ctx.JSON(http.StatusOK, res)
	case services.TransitionConflict:
		res.Current = reply.Result.Current
		res.Message = "Статус уже изменён другим оператором"
		return ctx.JSON(http.StatusConflict, res)
	default:
		res.Message = apperrors.ErrNotFound.Error()
		return ctx.JSON(http.StatusNotFound, res)
	}
}

func (c *OrderController) Comment(ctx echo.Context) error {
	actor, err := c.actorFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.CommentRequestDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	order, _, err := c.orderService.Comment(ctx.Request().Context(), orderID, payload.Text, actor)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, c.orderService.Renderer().ToOrderDTO(order), "Комментарий сохранён", http.StatusOK)
}

func (c *OrderController) SetReminder(ctx echo.Context) error {
	actor, err := c.actorFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	orderID, err := parseOrderID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.ReminderRequestDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	order, _, err := c.orderService.SetReminder(ctx.Request().Context(), orderID, payload.Minutes, actor)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, c.orderService.Renderer().ToOrderDTO(order), "Напоминание установлено", http.StatusOK)
}

func (c *OrderController) GetStats(ctx echo.Context) error {
	stats, err := c.orderService.Stats(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, stats, "Статистика получена", http.StatusOK)
}
