package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingEvent struct{}

func (pingEvent) Name() string { return "ping" }

func TestBus_PublishReachesEveryListener(t *testing.T) {
	bus := New(zap.NewNop())
	var calls atomic.Int32
	bus.Subscribe("ping", func(context.Context, Event) error { calls.Add(1); return nil })
	bus.Subscribe("ping", func(context.Context, Event) error { calls.Add(1); return errors.New("boom") })
	bus.Subscribe("ping", func(context.Context, Event) error { panic("listener panic") })
	bus.Subscribe("other", func(context.Context, Event) error { calls.Add(100); return nil })

	bus.Publish(context.Background(), pingEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Wait(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBus_ListenerOutlivesRequestContext(t *testing.T) {
	bus := New(zap.NewNop())
	got := make(chan error, 1)
	bus.Subscribe("ping", func(ctx context.Context, _ Event) error {
		got <- ctx.Err()
		return nil
	})

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(reqCtx, pingEvent{})

	assert.NoError(t, <-got)
}

func TestBus_WaitRespectsContext(t *testing.T) {
	bus := New(zap.NewNop())
	release := make(chan struct{})
	bus.Subscribe("ping", func(context.Context, Event) error { <-release; return nil })
	bus.Publish(context.Background(), pingEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Wait(context.Background()))
}
