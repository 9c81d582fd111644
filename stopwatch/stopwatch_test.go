package stopwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTwiceFails(t *testing.T) {
	sw := New()
	require.NoError(t, sw.Start())

	err := sw.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSplitBeforeStartFails(t *testing.T) {
	sw := New()
	err := sw.Split()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestZeroValueNotStarted(t *testing.T) {
	var sw StopWatch
	assert.False(t, sw.IsStarted())
	assert.Equal(t, time.Duration(0), sw.TotalTime())
	assert.Equal(t, time.Duration(0), sw.MeanSplitTime())
}

func TestSplitAccumulates(t *testing.T) {
	sw := New()
	require.NoError(t, sw.Start())

	d1 := 30 * time.Millisecond
	d2 := 60 * time.Millisecond

	time.Sleep(d1)
	require.NoError(t, sw.Split())
	first := sw.LastSplitTime()
	assert.GreaterOrEqual(t, first, d1)

	time.Sleep(d2)
	require.NoError(t, sw.Split())
	second := sw.LastSplitTime()
	assert.GreaterOrEqual(t, second, d2)

	assert.Equal(t, 2, sw.SplitCount())
	assert.Equal(t, first+second, sw.TotalSplitTime())

	// Mean should land between the two split durations.
	mean := sw.MeanSplitTime()
	assert.GreaterOrEqual(t, mean, first/2)
	assert.LessOrEqual(t, mean, second)
}

func TestTotalTimeIndependentOfSplits(t *testing.T) {
	sw := New()
	require.NoError(t, sw.Start())

	time.Sleep(20 * time.Millisecond)
	total := sw.TotalTime()
	assert.GreaterOrEqual(t, total, 20*time.Millisecond)
	// No split recorded yet.
	assert.Equal(t, time.Duration(0), sw.TotalSplitTime())
}

func TestResetAllowsRestart(t *testing.T) {
	sw := New()
	require.NoError(t, sw.Start())
	require.NoError(t, sw.Split())

	sw.Reset()
	assert.False(t, sw.IsStarted())
	require.NoError(t, sw.Start())
	assert.Equal(t, 0, sw.SplitCount())
}
