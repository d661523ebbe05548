package repositories_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/services"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/testutil"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/database/postgresql"
)

// testPool подключается к TEST_DATABASE_URL, применяет миграции и чистит таблицы.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgresql.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgresql.Migrate(pool))
	_, err = pool.Exec(ctx, `TRUNCATE orders, order_status_history, scheduler_runs, operators RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func newOrder(id int64) *entities.Order {
	return &entities.Order{
		ID:                id,
		OrderNumber:       null.StringFrom("1234"),
		Status:            constants.StatusNew,
		CustomerFirstName: null.StringFrom("Олена"),
		RawJSON:           []byte(`{"id":1}`),
	}
}

func TestOrderRepository_InsertIfAbsent(t *testing.T) {
	pool := testPool(t)
	repo := repositories.NewOrderRepository(pool, zap.NewNop())
	ctx := context.Background()

	inserted, err := repo.InsertIfAbsent(ctx, nil, newOrder(1))
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := newOrder(1)
	dup.CustomerFirstName = null.StringFrom("Інша")
	inserted, err = repo.InsertIfAbsent(ctx, nil, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	order, err := repo.FindByID(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "Олена", order.CustomerFirstName.String)
	assert.Equal(t, constants.StatusNew, order.Status)
	assert.True(t, order.IsIngested)
}

func TestOrderRepository_ConcurrentTransitionsApplyOnce(t *testing.T) {
	pool := testPool(t)
	orderRepo := repositories.NewOrderRepository(pool, zap.NewNop())
	historyRepo := repositories.NewOrderHistoryRepository(pool)
	engine := services.NewTransitionEngine(repositories.NewTxManager(pool), orderRepo, historyRepo, &testutil.RecordingBus{}, zap.NewNop())
	ctx := context.Background()

	_, err := orderRepo.InsertIfAbsent(ctx, nil, newOrder(7))
	require.NoError(t, err)

	const workers = 10
	outcomes := make(chan services.TransitionOutcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(operatorID int64) {
			defer wg.Done()
			res, err := engine.Transition(ctx, 7, constants.StatusNew, constants.StatusAwaitingPayment,
				entities.Actor{OperatorID: operatorID, Name: "op", ViewerID: "operator:1"})
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}(int64(i + 1))
	}
	wg.Wait()
	close(outcomes)

	counts := map[services.TransitionOutcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[services.TransitionApplied])
	assert.Equal(t, workers-1, counts[services.TransitionConflict])

	history, err := historyRepo.FindByOrderID(ctx, nil, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, constants.StatusAwaitingPayment, history[0].NewStatus)

	order, err := orderRepo.FindByID(ctx, nil, 7)
	require.NoError(t, err)
	assert.True(t, order.AwaitingPaymentSince.Valid)
}

func TestOrderRepository_Reminders(t *testing.T) {
	pool := testPool(t)
	repo := repositories.NewOrderRepository(pool, zap.NewNop())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, id := range []int64{1, 2} {
		_, err := repo.InsertIfAbsent(ctx, nil, newOrder(id))
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetReminder(ctx, nil, 1, null.TimeFrom(now.Add(-time.Minute))))
	require.NoError(t, repo.SetReminder(ctx, nil, 2, null.TimeFrom(now.Add(time.Hour))))

	due, err := repo.ListDueReminders(ctx, nil, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(1), due[0].ID)

	// Напоминание переустановили - старая отметка не снимает новую.
	cleared, err := repo.ClaimReminder(ctx, nil, 2, now)
	require.NoError(t, err)
	assert.False(t, cleared)

	firedAt := due[0].ReminderAt.Time
	cleared, err = repo.ClaimReminder(ctx, nil, 1, firedAt)
	require.NoError(t, err)
	assert.True(t, cleared)

	// Вторая реплика с той же выборкой уже ничего не забирает.
	cleared, err = repo.ClaimReminder(ctx, nil, 1, firedAt)
	require.NoError(t, err)
	assert.False(t, cleared)

	due, err = repo.ListDueReminders(ctx, nil, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Отправка не удалась - напоминание возвращается.
	restored, err := repo.ReleaseReminder(ctx, nil, 1, firedAt)
	require.NoError(t, err)
	assert.True(t, restored)
	due, err = repo.ListDueReminders(ctx, nil, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Поверх нового напоминания старое не возвращается.
	restored, err = repo.ReleaseReminder(ctx, nil, 2, now)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestOrderRepository_ClaimAging(t *testing.T) {
	pool := testPool(t)
	repo := repositories.NewOrderRepository(pool, zap.NewNop())
	ctx := context.Background()

	_, err := repo.InsertIfAbsent(ctx, nil, newOrder(1))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE orders SET created_at = now() - interval '3 hours'`)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Microsecond)
	claims, err := repo.ClaimAging(ctx, nil, now, time.Hour, 2*time.Hour)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.False(t, claims[0].Previous.Valid)

	// Второй проход в пределах cooldown ничего не берёт.
	again, err := repo.ClaimAging(ctx, nil, now, time.Hour, 2*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.ReleaseAging(ctx, nil, claims, now))
	again, err = repo.ClaimAging(ctx, nil, now, time.Hour, 2*time.Hour)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestSchedulerRunRepository_ClaimDailyRun(t *testing.T) {
	pool := testPool(t)
	repo := repositories.NewSchedulerRunRepository(pool)
	ctx := context.Background()

	ok, err := repo.ClaimDailyRun(ctx, nil, constants.JobPaymentReminder, "2025-03-10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimDailyRun(ctx, nil, constants.JobPaymentReminder, "2025-03-10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ReleaseDailyRun(ctx, nil, constants.JobPaymentReminder, "2025-03-10"))
	ok, err = repo.ClaimDailyRun(ctx, nil, constants.JobPaymentReminder, "2025-03-10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimDailyRun(ctx, nil, constants.JobPaymentReminder, "2025-03-11")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	pool := testPool(t)
	repo := repositories.NewOrderRepository(pool, zap.NewNop())
	tx := repositories.NewTxManager(pool)
	ctx := context.Background()

	err := tx.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := repo.InsertIfAbsent(ctx, tx, newOrder(5)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.FindByID(ctx, nil, 5)
	assert.Error(t, err)
}
