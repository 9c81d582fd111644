package hunit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedulerRequiresCallback(t *testing.T) {
	s := NewIntervalScheduler(time.Second, true, log.Root())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")
}

func TestIntervalSchedulerRunOnce(t *testing.T) {
	s := NewIntervalScheduler(0, true, log.Root())

	var calls atomic.Int32
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIntervalSchedulerRunsPeriodically(t *testing.T) {
	s := NewIntervalScheduler(10*time.Millisecond, false, log.Root())

	var calls atomic.Int32
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))

	// The first run happens synchronously on start; wait for at least one
	// periodic run after it.
	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitForShutdown(ctx))
}

func TestIntervalSchedulerStopIsIdempotent(t *testing.T) {
	s := NewIntervalScheduler(time.Hour, false, log.Root())
	s.RegisterCallback(func() error { return nil })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
}

func TestIntervalSchedulerContextCancelStops(t *testing.T) {
	s := NewIntervalScheduler(time.Hour, false, log.Root())
	s.RegisterCallback(func() error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, s.Stopped, time.Second, 5*time.Millisecond)
}
