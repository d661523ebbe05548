package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/entities"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/events"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/repositories"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/internal/testutil"
	"github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/constants"
	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

func newTestOrderService(orders ...*entities.Order) (*OrderService, *testutil.MemoryStore, *testutil.RecordingBus) {
	store := testutil.NewMemoryStore()
	store.Now = func() time.Time { return testClock }
	for _, o := range orders {
		store.Put(o)
	}
	bus := &testutil.RecordingBus{}
	engine := NewTransitionEngine(store, store, store, bus, zap.NewNop())
	svc := NewOrderService(store, store, store, engine, NewRenderer(time.UTC), bus, time.Second, zap.NewNop()).(*OrderService)
	svc.now = func() time.Time { return testClock }
	return svc, store, bus
}

func TestOrderService_TransitionInfersExpected(t *testing.T) {
	svc, store, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})

	reply, err := svc.Transition(context.Background(), 1, constants.StatusAwaitingPayment, "", operator(3))
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, reply.Result.Outcome)
	require.NotNil(t, reply.View)
	assert.Equal(t, constants.StatusAwaitingPayment, reply.View.Status)

	reply, err = svc.Transition(context.Background(), 1, constants.StatusPaid, "", operator(3))
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, reply.Result.Outcome)

	// "Оплатили" по уже закрытому заказу - конфликт с живым статусом, а не ошибка.
	reply, err = svc.Transition(context.Background(), 1, constants.StatusPaid, "", operator(4))
	require.NoError(t, err)
	assert.Equal(t, TransitionConflict, reply.Result.Outcome)
	assert.Equal(t, constants.StatusPaid, reply.Result.Current)
	require.NotNil(t, reply.View)
	assert.Empty(t, reply.View.Actions)
	assert.Len(t, store.History(1), 2)
}

func TestOrderService_CancelUsesCurrentStatus(t *testing.T) {
	svc, store, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusAwaitingPayment})

	reply, err := svc.Transition(context.Background(), 1, constants.StatusCancelled, "", operator(1))
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, reply.Result.Outcome)
	assert.Equal(t, constants.StatusCancelled, store.Order(1).Status)

	reply, err = svc.Transition(context.Background(), 1, constants.StatusCancelled, "", operator(2))
	require.NoError(t, err)
	assert.Equal(t, TransitionConflict, reply.Result.Outcome)
	assert.Equal(t, constants.StatusCancelled, reply.Result.Current)
}

func TestOrderService_TransitionUnknownOrder(t *testing.T) {
	svc, _, _ := newTestOrderService()

	reply, err := svc.Transition(context.Background(), 5, constants.StatusCancelled, "", operator(1))
	require.NoError(t, err)
	assert.Equal(t, TransitionNotFound, reply.Result.Outcome)

	reply, err = svc.Transition(context.Background(), 5, constants.StatusPaid, "", operator(1))
	require.NoError(t, err)
	assert.Equal(t, TransitionNotFound, reply.Result.Outcome)
}

func TestOrderService_TransitionUnknownTarget(t *testing.T) {
	svc, _, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})

	_, err := svc.Transition(context.Background(), 1, "shipped", "", operator(1))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestOrderService_TransitionRetriesTransientError(t *testing.T) {
	svc, store, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})
	calls := 0
	store.FailTx = func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	}

	reply, err := svc.Transition(context.Background(), 1, constants.StatusAwaitingPayment, "", operator(1))
	require.NoError(t, err)
	assert.Equal(t, TransitionApplied, reply.Result.Outcome)
	assert.Equal(t, 2, calls)
}

func TestOrderService_Comment(t *testing.T) {
	svc, store, bus := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusAwaitingPayment})
	actor := operator(9)

	order, view, err := svc.Comment(context.Background(), 1, "  передзвонити після 18:00 <b>  ", actor)
	require.NoError(t, err)

	assert.Equal(t, "передзвонити після 18:00 <b>", order.Comment.String)
	assert.Equal(t, "передзвонити після 18:00 <b>", store.Order(1).Comment.String)
	assert.Contains(t, view.Text, "передзвонити після 18:00 &lt;b&gt;")

	history := store.History(1)
	require.Len(t, history, 1)
	assert.Equal(t, constants.StatusAwaitingPayment.String(), history[0].OldStatus.String)
	assert.Equal(t, constants.StatusAwaitingPayment, history[0].NewStatus)
	assert.Equal(t, "передзвонити після 18:00 <b>", history[0].Comment.String)

	require.Len(t, bus.Events(), 1)
	assert.Equal(t, events.OrderCommentedEvent{OrderID: 1, Actor: actor}, bus.Events()[0])
}

func TestOrderService_CommentRejected(t *testing.T) {
	testCases := []struct {
		name    string
		status  constants.OrderStatus
		orderID int64
		text    string
		wantErr error
	}{
		{name: "пустой", status: constants.StatusNew, orderID: 1, text: "   ", wantErr: apperrors.ErrEmptyComment},
		{name: "слишком длинный", status: constants.StatusNew, orderID: 1, text: strings.Repeat("я", constants.MaxCommentLength+1), wantErr: apperrors.ErrCommentTooLong},
		{name: "закрытый заказ", status: constants.StatusPaid, orderID: 1, text: "ok", wantErr: apperrors.ErrOrderClosed},
		{name: "нет заказа", status: constants.StatusNew, orderID: 2, text: "ok", wantErr: apperrors.ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, bus := newTestOrderService(&entities.Order{ID: 1, Status: tc.status})

			_, _, err := svc.Comment(context.Background(), tc.orderID, tc.text, operator(1))

			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.False(t, store.Order(1).Comment.Valid)
			assert.Empty(t, store.History(1))
			assert.Empty(t, bus.Events())
		})
	}
}

func TestOrderService_CommentAtLimitAccepted(t *testing.T) {
	svc, _, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})

	_, _, err := svc.Comment(context.Background(), 1, strings.Repeat("я", constants.MaxCommentLength), operator(1))
	assert.NoError(t, err)
}

func TestOrderService_SetReminder(t *testing.T) {
	svc, store, bus := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})
	actor := operator(2)

	order, view, err := svc.SetReminder(context.Background(), 1, 30, actor)
	require.NoError(t, err)

	want := testClock.Add(30 * time.Minute)
	assert.True(t, order.ReminderAt.Time.Equal(want))
	assert.True(t, store.Order(1).ReminderAt.Time.Equal(want))
	assert.Contains(t, view.Text, "Нагадування: 10.03 12:30")
	assert.Empty(t, store.History(1))
	require.Len(t, bus.Events(), 1)
	assert.Equal(t, events.OrderReminderSetEvent{OrderID: 1, Actor: actor}, bus.Events()[0])
}

func TestOrderService_SetReminderRejected(t *testing.T) {
	svc, _, _ := newTestOrderService(
		&entities.Order{ID: 1, Status: constants.StatusNew},
		&entities.Order{ID: 2, Status: constants.StatusCancelled},
	)

	_, _, err := svc.SetReminder(context.Background(), 1, 45, operator(1))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidReminder))

	_, _, err = svc.SetReminder(context.Background(), 2, 15, operator(1))
	assert.True(t, errors.Is(err, apperrors.ErrOrderClosed))
}

func TestOrderService_ListAndStats(t *testing.T) {
	yesterday := testClock.Add(-24 * time.Hour)
	svc, _, _ := newTestOrderService(
		&entities.Order{ID: 1, Status: constants.StatusNew, CreatedAt: yesterday},
		&entities.Order{ID: 2, Status: constants.StatusAwaitingPayment, CreatedAt: testClock.Add(-time.Hour)},
		&entities.Order{ID: 3, Status: constants.StatusPaid, CreatedAt: testClock.Add(-30 * time.Minute)},
	)

	pending, total, err := svc.List(context.Background(), repositories.OrderListFilter{PendingOnly: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].ID)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Today)
	assert.Equal(t, int64(1), stats.ByStatus[constants.StatusPaid])
	assert.Zero(t, stats.ByStatus[constants.StatusCancelled])
}

func TestOrderService_History(t *testing.T) {
	svc, _, _ := newTestOrderService(&entities.Order{ID: 1, Status: constants.StatusNew})

	_, err := svc.Transition(context.Background(), 1, constants.StatusAwaitingPayment, constants.StatusNew, operator(1))
	require.NoError(t, err)
	_, _, err = svc.Comment(context.Background(), 1, "чекаємо", operator(1))
	require.NoError(t, err)

	history, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, null.StringFrom("чекаємо"), history[1].Comment)

	_, err = svc.History(context.Background(), 404)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderService_HistoryChainFromIngestion(t *testing.T) {
	testCases := []struct {
		name  string
		chain []constants.OrderStatus
	}{
		{name: "оплачен", chain: []constants.OrderStatus{constants.StatusAwaitingPayment, constants.StatusPaid}},
		{name: "отменён сразу", chain: []constants.OrderStatus{constants.StatusCancelled}},
		{name: "отменён после звонка", chain: []constants.OrderStatus{constants.StatusAwaitingPayment, constants.StatusCancelled}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			bus := &testutil.RecordingBus{}
			ingestion := NewIngestionService(testWebhookSecret, store, store, store, bus, 0, zap.NewNop())
			engine := NewTransitionEngine(store, store, store, bus, zap.NewNop())
			svc := NewOrderService(store, store, store, engine, NewRenderer(time.UTC), bus, time.Second, zap.NewNop())

			ingestSigned(t, ingestion, "", sampleWebhook)
			for i, next := range tc.chain {
				reply, err := svc.Transition(context.Background(), 1001, next, "", operator(int64(i+1)))
				require.NoError(t, err)
				require.Equal(t, TransitionApplied, reply.Result.Outcome)
			}
			// Проигравшее нажатие в журнал не попадает.
			reply, err := svc.Transition(context.Background(), 1001, constants.StatusPaid, "", operator(9))
			require.NoError(t, err)
			require.Equal(t, TransitionConflict, reply.Result.Outcome)

			history, err := svc.History(context.Background(), 1001)
			require.NoError(t, err)
			require.Len(t, history, len(tc.chain)+1)

			assert.False(t, history[0].OldStatus.Valid)
			assert.Equal(t, constants.StatusNew, history[0].NewStatus)
			for i := 1; i < len(history); i++ {
				assert.Greater(t, history[i].ID, history[i-1].ID)
				assert.Equal(t, null.StringFrom(history[i-1].NewStatus.String()), history[i].OldStatus)
				assert.Equal(t, tc.chain[i-1], history[i].NewStatus)
				assert.Equal(t, null.Int64From(int64(i)), history[i].OperatorID)
			}
		})
	}
}
