package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/NaturesProfit7/Shopify-Order-Notifier/pkg/errors"
)

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_SendMessageToUser(t *testing.T) {
	hub, _ := runHub(t)
	first := NewClient(hub, nil, 3)
	second := NewClient(hub, nil, 3)
	hub.Register(first)
	hub.Register(second)
	require.Eventually(t, func() bool { return hub.Connections(3) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendMessageToUser(3, map[string]int64{"order_id": 42}, MessageTypeOrderUpdated))

	for _, c := range []*Client{first, second} {
		var env Envelope
		require.NoError(t, json.Unmarshal(<-c.Send, &env))
		assert.Equal(t, MessageTypeOrderUpdated, env.Type)
		assert.NotEmpty(t, env.ID)
		assert.Equal(t, map[string]interface{}{"order_id": float64(42)}, env.Payload)
	}

	err := hub.SendMessageToUser(4, "x", MessageTypeOrderUpdated)
	assert.True(t, errors.Is(err, apperrors.ErrTargetGone))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _ := runHub(t)
	client := NewClient(hub, nil, 3)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.Connections(3) == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.Connections(3) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.Send
	assert.False(t, open)

	err := hub.SendMessageToUser(3, "x", MessageTypeOrderUpdated)
	assert.True(t, errors.Is(err, apperrors.ErrTargetGone))
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := runHub(t)
	client := NewClient(hub, nil, 3)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.Connections(3) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case _, open := <-client.Send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("канал клиента не закрыт после остановки hub")
	}

	// После остановки регистрация не блокируется.
	late := NewClient(hub, nil, 5)
	hub.Register(late)
	_, open := <-late.Send
	assert.False(t, open)
}
