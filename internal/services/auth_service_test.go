package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/testutil"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

func newTestAuth(t *testing.T) (AuthServiceInterface, service.JWTService) {
	t.Helper()
	hash, err := utils.HashPassword("s3cret")
	require.NoError(t, err)

	operators := testutil.NewMemoryOperators(
		&entities.Operator{Login: "irina", Name: "Ірина", TelegramUserID: null.Int64From(111), PasswordHash: hash, IsActive: true},
		&entities.Operator{Login: "old", Name: "Колишній", TelegramUserID: null.Int64From(222), PasswordHash: hash, IsActive: false},
	)
	jwtSvc := service.NewJWTService("test-key", time.Hour, zap.NewNop())
	return NewAuthService(operators, jwtSvc, zap.NewNop()), jwtSvc
}

func TestAuthService_Login(t *testing.T) {
	auth, jwtSvc := newTestAuth(t)

	res, err := auth.Login(context.Background(), dto.LoginDTO{Login: "irina", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "Ірина", res.Name)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := jwtSvc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.OperatorID, claims.OperatorID)
}

func TestAuthService_LoginRejected(t *testing.T) {
	auth, _ := newTestAuth(t)

	testCases := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{name: "неизвестный логин", login: "nobody", password: "s3cret", wantErr: apperrors.ErrInvalidCredentials},
		{name: "неверный пароль", login: "irina", password: "wrong", wantErr: apperrors.ErrInvalidCredentials},
		{name: "отключён", login: "old", password: "s3cret", wantErr: apperrors.ErrForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Login(context.Background(), dto.LoginDTO{Login: tc.login, Password: tc.password})
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestAuthService_OperatorByTelegramID(t *testing.T) {
	auth, _ := newTestAuth(t)

	op, err := auth.OperatorByTelegramID(context.Background(), 111)
	require.NoError(t, err)
	assert.Equal(t, "irina", op.Login)

	_, err = auth.OperatorByTelegramID(context.Background(), 222)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = auth.OperatorByTelegramID(context.Background(), 333)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}
