package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

func TestAuthMiddleware(t *testing.T) {
	jwtSvc := service.NewJWTService("secret", time.Hour, zap.NewNop())
	token, err := jwtSvc.GenerateToken(7, "Ірина")
	require.NoError(t, err)

	mw := NewAuthMiddleware(jwtSvc, zap.NewNop())
	handler := mw.Auth(func(c echo.Context) error {
		id, err := utils.GetOperatorIDFromCtx(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "name": utils.GetOperatorNameFromCtx(c.Request().Context())})
	})

	testCases := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "валидный токен", header: "Bearer " + token, wantCode: http.StatusOK},
		{name: "без заголовка", header: "", wantCode: http.StatusUnauthorized},
		{name: "не Bearer", header: "Basic " + token, wantCode: http.StatusUnauthorized},
		{name: "мусор", header: "Bearer abc", wantCode: http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			require.NoError(t, handler(echo.New().NewContext(req, rec)))

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"name":"Ірина"}`, rec.Body.String())
			}
		})
	}
}
