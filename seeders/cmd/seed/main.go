package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/config"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/database/postgresql"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/eventbus"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runMigrate := flag.Bool("migrate", false, "Применить миграции")
	runOperators := flag.Bool("operators", false, "Создать/обновить операторов из SEED_OPERATORS")
	runOrders := flag.Bool("orders", false, "Прогнать тестовые заказы через шлюз вебхуков")
	flag.Parse()

	if !*runMigrate && !*runOperators && !*runOrders {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -migrate -operators")
		log.Println("  SEED_OPERATORS='anna:Анна:123456789:secret123' go run ./seeders/cmd/seed -operators")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	dbPool := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbPool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *runMigrate {
		if err := postgresql.Migrate(dbPool); err != nil {
			log.Fatalf("❌ Миграции: %v", err)
		}
		log.Println("✅ Миграции применены")
	}

	if *runOperators {
		if err := seeders.SeedOperators(ctx, dbPool, os.Getenv("SEED_OPERATORS")); err != nil {
			log.Fatalf("❌ Операторы: %v", err)
		}
		log.Println("✅ Операторы сохранены")
	}

	if *runOrders {
		logger := zap.NewNop()
		bus := eventbus.New(logger)
		ingestion := services.NewIngestionService(
			cfg.Shopify.WebhookSecret,
			repositories.NewTxManager(dbPool),
			repositories.NewOrderRepository(dbPool, logger),
			repositories.NewOrderHistoryRepository(dbPool),
			bus,
			cfg.StoreTimeout,
			logger,
		)
		if err := seeders.SeedOrders(ctx, ingestion, cfg.Shopify.WebhookSecret); err != nil {
			log.Fatalf("❌ Заказы: %v", err)
		}
		log.Println("✅ Тестовые заказы загружены")
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
