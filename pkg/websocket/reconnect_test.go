package websocket

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

func TestNewReconnectManager_Defaults(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{}, zap.NewNop())

	assert.Equal(t, DefaultReconnectInitialDelay, rm.config.InitialDelay)
	assert.Equal(t, DefaultReconnectMaxDelay, rm.config.MaxDelay)
	assert.Equal(t, DefaultReconnectBackoffMult, rm.config.BackoffMultiplier)
	assert.Equal(t, time.Second, rm.Backoff())
}

func TestReconnectManager_BackoffGrowsToCap(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}, zap.NewNop())

	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, rm.Backoff(), "step %d", i)
		rm.incrementBackoff()
	}
	assert.Equal(t, len(want), rm.Attempts())

	rm.Reset()
	assert.Equal(t, time.Second, rm.Backoff())
	assert.Zero(t, rm.Attempts())
}

func TestReconnectManager_Jitter(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		JitterPercent: 0.2,
	}, zap.NewNop())

	for i := 0; i < 50; i++ {
		d := rm.nextBackoff()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}

func TestReconnect_SucceedsAfterFailures(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}, zap.NewNop())

	var calls atomic.Int32
	err := rm.Reconnect(context.Background(), func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 5*time.Millisecond, rm.Backoff())
}

func TestReconnect_ContextCancellation(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{InitialDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rm.Reconnect(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
