// Package stopwatch provides a wall-clock interval timer tracking per-split
// and total durations. All measurements are based on Go's monotonic clock
// reading, so they are immune to system clock adjustments.
package stopwatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidState is returned when Start or Split is called in the wrong
// state, e.g. starting an already-started stopwatch.
var ErrInvalidState = errors.New("stopwatch: invalid state")

// StopWatch measures split (per-test) durations and a running total.
// The zero value is a stopped stopwatch. StopWatch is not safe for
// concurrent use; each owner keeps its own.
type StopWatch struct {
	startedAt      time.Time
	lastSplitAt    time.Time
	lastSplitTime  time.Duration
	totalSplitTime time.Duration
	splitCount     int
}

// New returns a stopwatch in the not-started state.
func New() *StopWatch {
	return &StopWatch{}
}

// Reset returns the stopwatch to the not-started state.
func (sw *StopWatch) Reset() {
	*sw = StopWatch{}
}

// IsStarted reports whether Start has been called since the last Reset.
func (sw *StopWatch) IsStarted() bool {
	return !sw.startedAt.IsZero()
}

// Start records the start instant. It fails if the stopwatch is already
// started.
func (sw *StopWatch) Start() error {
	if sw.IsStarted() {
		return fmt.Errorf("%w: already started", ErrInvalidState)
	}
	now := time.Now()
	sw.startedAt = now
	sw.lastSplitAt = now
	sw.lastSplitTime = 0
	sw.totalSplitTime = 0
	sw.splitCount = 0
	return nil
}

// Split records the elapsed time since the previous split (or since Start
// for the first split) and accumulates the running total. It fails if the
// stopwatch is not started.
func (sw *StopWatch) Split() error {
	if !sw.IsStarted() {
		return fmt.Errorf("%w: not started", ErrInvalidState)
	}
	now := time.Now()
	sw.lastSplitTime = now.Sub(sw.lastSplitAt)
	sw.lastSplitAt = now
	sw.totalSplitTime += sw.lastSplitTime
	sw.splitCount++
	return nil
}

// LastSplitTime returns the duration recorded by the most recent Split.
func (sw *StopWatch) LastSplitTime() time.Duration {
	return sw.lastSplitTime
}

// TotalSplitTime returns the sum of all recorded splits.
func (sw *StopWatch) TotalSplitTime() time.Duration {
	return sw.totalSplitTime
}

// SplitCount returns the number of Split calls since Start.
func (sw *StopWatch) SplitCount() int {
	return sw.splitCount
}

// MeanSplitTime returns the average split duration, or zero if no split has
// been recorded.
func (sw *StopWatch) MeanSplitTime() time.Duration {
	if sw.splitCount == 0 {
		return 0
	}
	return sw.totalSplitTime / time.Duration(sw.splitCount)
}

// TotalTime returns the wall time elapsed since Start, independent of
// splits. It is zero when the stopwatch is not started.
func (sw *StopWatch) TotalTime() time.Duration {
	if !sw.IsStarted() {
		return 0
	}
	return time.Since(sw.startedAt)
}
