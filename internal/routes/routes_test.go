package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/testutil"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/customvalidator"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/websocket"
)

const (
	testWebhookSecret = "shpss_routes_secret"
	testPassword      = "s3cret-pass"
)

// OrderRoutesTestSuite гоняет HTTP-маршруты целиком: вебхук, вход, JWT, операции над заказом.
type OrderRoutesTestSuite struct {
	suite.Suite
	Echo  *echo.Echo
	Store *testutil.MemoryStore
	Bus   *eventbus.Bus
	Token string
}

func (s *OrderRoutesTestSuite) SetupTest() {
	logger := zap.NewNop()

	hash, err := utils.HashPassword(testPassword)
	s.Require().NoError(err)
	operators := testutil.NewMemoryOperators(
		&entities.Operator{Login: "irina", Name: "Ірина", TelegramUserID: null.Int64From(111), PasswordHash: hash, IsActive: true},
	)

	s.Store = testutil.NewMemoryStore()
	s.Bus = eventbus.New(logger)
	renderer := services.NewRenderer(time.UTC)
	engine := services.NewTransitionEngine(s.Store, s.Store, s.Store, s.Bus, logger)
	jwtSvc := service.NewJWTService("routes-test-key", time.Hour, logger)
	fanout := services.NewFanoutService(repositories.NewMemoryViewStore(), s.Store, nil, 2, time.Second, logger)

	v := validator.New()
	s.Require().NoError(customvalidator.RegisterCustomValidations(v))
	e := echo.New()
	e.Validator = utils.NewValidator(v)

	InitRouter(context.Background(), e, &Dependencies{
		IngestionService: services.NewIngestionService(testWebhookSecret, s.Store, s.Store, s.Store, s.Bus, time.Second, logger),
		OrderService:     services.NewOrderService(s.Store, s.Store, s.Store, engine, renderer, s.Bus, time.Second, logger),
		AuthService:      services.NewAuthService(operators, jwtSvc, logger),
		ReportService:    services.NewReportService(s.Store, time.UTC, logger),
		Fanout:           fanout,
		Hub:              websocket.NewHub(logger),
		JWTService:       jwtSvc,
		Location:         time.UTC,
	}, &Loggers{Main: logger, Auth: logger, Order: logger, Webhook: logger, Telegram: logger})
	s.Echo = e

	rec := s.do(http.MethodPost, "/api/auth/login", fmt.Sprintf(`{"login":"irina","password":%q}`, testPassword), "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Body dto.LoginResponseDTO `json:"body"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &login))
	s.Require().NotEmpty(login.Body.AccessToken)
	s.Token = login.Body.AccessToken
}

func (s *OrderRoutesTestSuite) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.Bus.Wait(ctx))
	return rec
}

func (s *OrderRoutesTestSuite) ingest(id int64) {
	body := fmt.Sprintf(`{"id":%d,"order_number":%d,"phone":"0671234567"}`, id, id-900)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Shopify-Hmac-Sha256", services.SignShopifyBody(testWebhookSecret, []byte(body)))
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *OrderRoutesTestSuite) TestSecureRoutesRequireToken() {
	s.ingest(1001)

	rec := s.do(http.MethodGet, "/api/orders/1001", "", "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders/1001", "", "not-a-token")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/healthz", "", "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *OrderRoutesTestSuite) TestLifecycleThroughHTTP() {
	s.ingest(1001)

	rec := s.do(http.MethodPost, "/api/orders/1001/transition", `{"status":"awaiting_payment"}`, s.Token)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/orders/1001/transition", `{"status":"paid"}`, s.Token)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var res dto.TransitionResponseDTO
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Require().NotNil(res.Order)
	s.Equal(constants.StatusPaid, res.Order.Status)
	s.Empty(res.Order.View.Actions)

	// Повторное "Оплатили" - конфликт с живым статусом.
	rec = s.do(http.MethodPost, "/api/orders/1001/transition", `{"status":"paid"}`, s.Token)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders/1001/history", "", s.Token)
	s.Require().Equal(http.StatusOK, rec.Code)
	var history struct {
		Body []dto.StatusHistoryDTO `json:"body"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &history))
	s.Len(history.Body, 3)
}

func (s *OrderRoutesTestSuite) TestOrderListPagination() {
	for _, id := range []int64{1001, 1002, 1003} {
		s.ingest(id)
	}

	testCases := []struct {
		name      string
		query     string
		wantItems int
		wantPage  uint64
		wantPages uint64
		wantMore  bool
	}{
		{name: "первая страница", query: "?limit=2", wantItems: 2, wantPage: 1, wantPages: 2, wantMore: true},
		{name: "вторая страница", query: "?limit=2&offset=2", wantItems: 1, wantPage: 2, wantPages: 2, wantMore: false},
		{name: "всё сразу", query: "", wantItems: 3, wantPage: 1, wantPages: 1, wantMore: false},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodGet, "/api/orders"+tc.query, "", s.Token)
			s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

			var res dto.OrderListResponseDTO
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
			s.Len(res.Data, tc.wantItems)
			s.Require().NotNil(res.Pagination)
			s.Equal(uint64(3), res.Pagination.TotalCount)
			s.Equal(tc.wantPage, res.Pagination.CurrentPage)
			s.Equal(tc.wantPages, res.Pagination.TotalPages)
			s.Equal(tc.wantMore, res.Pagination.HasMore)
		})
	}
}

func TestOrderRoutesTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRoutesTestSuite))
}
