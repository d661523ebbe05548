package seeders

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/utils"
)

// OperatorSeed - одна запись из SEED_OPERATORS.
type OperatorSeed struct {
	Login          string
	Name           string
	TelegramUserID int64
	Password       string
}

// ParseOperatorSpec разбирает "login:name:telegramID:password;...". telegramID может быть пустым.
func ParseOperatorSpec(spec string) ([]OperatorSeed, error) {
	var res []OperatorSeed
	for _, item := range strings.Split(spec, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("оператор %q: ожидается login:name:telegramID:password", item)
		}
		seed := OperatorSeed{
			Login:    strings.TrimSpace(parts[0]),
			Name:     strings.TrimSpace(parts[1]),
			Password: parts[3],
		}
		if seed.Login == "" || seed.Password == "" {
			return nil, fmt.Errorf("оператор %q: пустой логин или пароль", item)
		}
		if tgID := strings.TrimSpace(parts[2]); tgID != "" {
			id, err := strconv.ParseInt(tgID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("оператор %q: telegramID не число", seed.Login)
			}
			seed.TelegramUserID = id
		}
		if seed.Name == "" {
			seed.Name = seed.Login
		}
		res = append(res, seed)
	}
	return res, nil
}

func SeedOperators(ctx context.Context, db *pgxpool.Pool, spec string) error {
	seeds, err := ParseOperatorSpec(spec)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		log.Println("  - SEED_OPERATORS пуст. Пропускаем.")
		return nil
	}

	repo := repositories.NewOperatorRepository(db)
	for _, s := range seeds {
		hashedPassword, err := utils.HashPassword(s.Password)
		if err != nil {
			return err
		}
		id, err := repo.Upsert(ctx, nil, &entities.Operator{
			Login:          s.Login,
			Name:           s.Name,
			TelegramUserID: null.NewInt64(s.TelegramUserID, s.TelegramUserID != 0),
			PasswordHash:   hashedPassword,
			IsActive:       true,
		})
		if err != nil {
			return fmt.Errorf("оператор %s: %w", s.Login, err)
		}
		log.Printf("  - Оператор %s (id=%d) сохранён", s.Login, id)
	}
	return nil
}

// SeedOrders прогоняет примеры заказов через шлюз вебхуков, подписывая их тем же секретом.
func SeedOrders(ctx context.Context, ingestion services.IngestionServiceInterface, secret string) error {
	for _, body := range sampleOrders {
		raw := []byte(body)
		res, err := ingestion.Ingest(ctx, "", services.SignShopifyBody(secret, raw), raw)
		if err != nil {
			return err
		}
		log.Printf("  - Заказ %d: %s", res.ExternalID, res.Outcome)
	}
	return nil
}
