package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/testutil"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/contextkeys"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/customvalidator"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

const webhookSecret = "shpss_test_secret"

func newEcho(t *testing.T) *echo.Echo {
	t.Helper()
	v := validator.New()
	require.NoError(t, customvalidator.RegisterCustomValidations(v))
	e := echo.New()
	e.Validator = utils.NewValidator(v)
	return e
}

// ==================== ВЕБХУК SHOPIFY ====================

func postWebhook(t *testing.T, ctrl *ShopifyWebhookController, body, hmacHeader, orderIDHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(headerShopifyHmac, hmacHeader)
	if orderIDHeader != "" {
		req.Header.Set(headerShopifyOrderID, orderIDHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, ctrl.HandleOrderWebhook(newEcho(t).NewContext(req, rec)))
	return rec
}

func decodeWebhook(t *testing.T, rec *httptest.ResponseRecorder) dto.WebhookResponseDTO {
	t.Helper()
	var res dto.WebhookResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestShopifyWebhook(t *testing.T) {
	store := testutil.NewMemoryStore()
	ingestion := services.NewIngestionService(webhookSecret, store, store, store, &testutil.RecordingBus{}, time.Second, zap.NewNop())
	ctrl := NewShopifyWebhookController(ingestion, zap.NewNop())

	body := `{"id":555,"order_number":77,"total_price":"100.00","currency":"UAH"}`
	signature := services.SignShopifyBody(webhookSecret, []byte(body))

	t.Run("неверная подпись", func(t *testing.T) {
		rec := postWebhook(t, ctrl, body, "bm9wZQ==", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(services.IngestRejected), decodeWebhook(t, rec).Status)
		assert.Zero(t, store.OrderCount())
	})

	t.Run("принят", func(t *testing.T) {
		rec := postWebhook(t, ctrl, body, signature, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		res := decodeWebhook(t, rec)
		assert.Equal(t, string(services.IngestAccepted), res.Status)
		assert.Equal(t, int64(555), res.ExternalID)
	})

	t.Run("повтор", func(t *testing.T) {
		rec := postWebhook(t, ctrl, body, signature, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(services.IngestDuplicate), decodeWebhook(t, rec).Status)
		assert.Equal(t, 1, store.OrderCount())
	})

	t.Run("без идентификатора", func(t *testing.T) {
		noID := `{"order_number":78}`
		rec := postWebhook(t, ctrl, noID, services.SignShopifyBody(webhookSecret, []byte(noID)), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid", decodeWebhook(t, rec).Status)
	})

	t.Run("идентификатор из заголовка", func(t *testing.T) {
		noID := `{"order_number":79}`
		rec := postWebhook(t, ctrl, noID, services.SignShopifyBody(webhookSecret, []byte(noID)), "556")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(556), decodeWebhook(t, rec).ExternalID)
	})
}

// ==================== ЗАКАЗЫ ====================

type orderFixture struct {
	e     *echo.Echo
	ctrl  *OrderController
	store *testutil.MemoryStore
	views repositories.ViewStoreInterface
}

func newOrderFixture(t *testing.T, orders ...*entities.Order) *orderFixture {
	t.Helper()
	logger := zap.NewNop()
	store := testutil.NewMemoryStore()
	for _, o := range orders {
		store.Put(o)
	}
	bus := &testutil.RecordingBus{}
	renderer := services.NewRenderer(time.UTC)
	engine := services.NewTransitionEngine(store, store, store, bus, logger)
	orderSvc := services.NewOrderService(store, store, store, engine, renderer, bus, time.Second, logger)
	views := repositories.NewMemoryViewStore()
	fanout := services.NewFanoutService(views, store, nil, 1, time.Second, logger)

	return &orderFixture{e: newEcho(t), ctrl: NewOrderController(orderSvc, fanout, logger), store: store, views: views}
}

// call выполняет обработчик от имени оператора; operatorID 0 - без авторизации.
func (f *orderFixture) call(t *testing.T, handler echo.HandlerFunc, method, id, body string, operatorID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/orders/"+id, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if operatorID != 0 {
		ctx := context.WithValue(req.Context(), contextkeys.OperatorIDKey, operatorID)
		ctx = context.WithValue(ctx, contextkeys.OperatorNameKey, "Ірина")
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, handler(c))
	return rec
}

func decodeTransition(t *testing.T, rec *httptest.ResponseRecorder) dto.TransitionResponseDTO {
	t.Helper()
	var res dto.TransitionResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestOrderController_Transition(t *testing.T) {
	f := newOrderFixture(t, &entities.Order{ID: 7, Status: constants.StatusNew})

	rec := f.call(t, f.ctrl.Transition, http.MethodPost, "7", `{"status":"awaiting_payment"}`, 3)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeTransition(t, rec)
	assert.Equal(t, string(services.TransitionApplied), res.Outcome)
	require.NotNil(t, res.Order)
	assert.Equal(t, constants.StatusAwaitingPayment, res.Order.Status)

	// Устаревшая карточка: клиент прислал ожидаемый статус, который уже сменился.
	rec = f.call(t, f.ctrl.Transition, http.MethodPost, "7", `{"status":"cancelled","expected_status":"new"}`, 4)
	require.Equal(t, http.StatusConflict, rec.Code)
	res = decodeTransition(t, rec)
	assert.Equal(t, string(services.TransitionConflict), res.Outcome)
	assert.Equal(t, constants.StatusAwaitingPayment, res.Current)

	rec = f.call(t, f.ctrl.Transition, http.MethodPost, "404", `{"status":"awaiting_payment"}`, 3)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderController_TransitionRejects(t *testing.T) {
	f := newOrderFixture(t, &entities.Order{ID: 7, Status: constants.StatusNew})

	testCases := []struct {
		name     string
		id       string
		body     string
		operator int64
		wantCode int
	}{
		{name: "без оператора", id: "7", body: `{"status":"paid"}`, operator: 0, wantCode: http.StatusUnauthorized},
		{name: "плохой id", id: "abc", body: `{"status":"paid"}`, operator: 1, wantCode: http.StatusBadRequest},
		{name: "неизвестный статус", id: "7", body: `{"status":"shipped"}`, operator: 1, wantCode: http.StatusBadRequest},
		{name: "недопустимое ребро", id: "7", body: `{"status":"paid","expected_status":"new"}`, operator: 1, wantCode: http.StatusUnprocessableEntity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.call(t, f.ctrl.Transition, http.MethodPost, tc.id, tc.body, tc.operator)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
	assert.Equal(t, constants.StatusNew, f.store.Order(7).Status)
}

func TestOrderController_FindOrderRegistersViewer(t *testing.T) {
	f := newOrderFixture(t, &entities.Order{ID: 7, Status: constants.StatusNew})

	rec := f.call(t, f.ctrl.FindOrder, http.MethodGet, "7", "", 3)
	require.Equal(t, http.StatusOK, rec.Code)

	targets, err := f.views.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "operator:3", targets[0].ViewerID)

	rec = f.call(t, f.ctrl.CloseView, http.MethodDelete, "7", "", 3)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	targets, err = f.views.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestOrderController_CommentAndHistory(t *testing.T) {
	f := newOrderFixture(t, &entities.Order{ID: 7, Status: constants.StatusNew})

	rec := f.call(t, f.ctrl.Comment, http.MethodPost, "7", `{"text":"передзвонити"}`, 3)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.call(t, f.ctrl.Comment, http.MethodPost, "7", `{"text":""}`, 3)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.call(t, f.ctrl.GetHistory, http.MethodGet, "7", "", 3)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Body []dto.StatusHistoryDTO `json:"body"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Body, 1)
	require.NotNil(t, res.Body[0].Comment)
	assert.Equal(t, "передзвонити", *res.Body[0].Comment)
}

func TestOrderController_SetReminderValidatesMinutes(t *testing.T) {
	f := newOrderFixture(t, &entities.Order{ID: 7, Status: constants.StatusNew})

	rec := f.call(t, f.ctrl.SetReminder, http.MethodPost, "7", `{"minutes":7}`, 3)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.call(t, f.ctrl.SetReminder, http.MethodPost, "7", `{"minutes":60}`, 3)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.store.Order(7).ReminderAt.Valid)
}

// ==================== ОТЧЁТ ====================

func TestReportController_ExportOrders(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Put(&entities.Order{ID: 1, Status: constants.StatusNew, CreatedAt: time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)})
	ctrl := NewReportController(services.NewReportService(store, time.UTC, zap.NewNop()), time.UTC, zap.NewNop())
	ctrl.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	e := newEcho(t)

	testCases := []struct {
		name     string
		query    string
		wantCode int
		wantFile string
	}{
		{name: "по умолчанию 30 дней", query: "", wantCode: http.StatusOK, wantFile: "orders_2025-02-08_2025-03-10.xlsx"},
		{name: "явный период", query: "?from=2025-03-01&to=2025-03-09", wantCode: http.StatusOK, wantFile: "orders_2025-03-01_2025-03-09.xlsx"},
		{name: "from позже to", query: "?from=2025-03-10&to=2025-03-01", wantCode: http.StatusBadRequest},
		{name: "плохая дата", query: "?from=10.03.2025", wantCode: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/export"+tc.query, nil)
			rec := httptest.NewRecorder()
			require.NoError(t, ctrl.ExportOrders(e.NewContext(req, rec)))

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantFile != "" {
				assert.Equal(t, "attachment; filename="+tc.wantFile, rec.Header().Get("Content-Disposition"))
				assert.NotZero(t, rec.Body.Len())
			}
		})
	}
}
