package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/dto"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/service"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, payload dto.LoginDTO) (*dto.LoginResponseDTO, error)
	// OperatorByTelegramID - ErrForbidden для неизвестных и отключённых.
	OperatorByTelegramID(ctx context.Context, telegramUserID int64) (*entities.Operator, error)
}

type AuthService struct {
	operatorRepo repositories.OperatorRepositoryInterface
	jwtService   service.JWTService
	logger       *zap.Logger
}

func NewAuthService(
	operatorRepo repositories.OperatorRepositoryInterface,
	jwtService service.JWTService,
	logger *zap.Logger,
) AuthServiceInterface {
	return &AuthService{
		operatorRepo: operatorRepo,
		jwtService:   jwtService,
		logger:       logger,
	}
}

func (s *AuthService) Login(ctx context.Context, payload dto.LoginDTO) (*dto.LoginResponseDTO, error) {
	logger := s.logger.With(zap.String("login", payload.Login))

	op, err := s.operatorRepo.FindByLogin(ctx, nil, payload.Login)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Попытка входа с неизвестным логином")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !op.IsActive {
		logger.Warn("Попытка входа отключённого оператора")
		return nil, apperrors.ErrForbidden
	}
	if err := utils.ComparePasswords(op.PasswordHash, payload.Password); err != nil {
		logger.Warn("Неверный пароль")
		return nil, err
	}

	token, err := s.jwtService.GenerateToken(op.ID, op.Name)
	if err != nil {
		return nil, err
	}
	logger.Info("Оператор вошёл", zap.Int64("operatorID", op.ID))
	return &dto.LoginResponseDTO{
		AccessToken: token,
		OperatorID:  op.ID,
		Name:        op.Name,
		ExpiresIn:   int64(s.jwtService.GetAccessTokenTTL().Seconds()),
	}, nil
}

func (s *AuthService) OperatorByTelegramID(ctx context.Context, telegramUserID int64) (*entities.Operator, error) {
	op, err := s.operatorRepo.FindByTelegramUserID(ctx, nil, telegramUserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrForbidden
	}
	return op, err
}
