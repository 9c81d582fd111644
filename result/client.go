package result

import (
	"fmt"

	"github.com/hunit-dev/hunit/stopwatch"
	"github.com/hunit-dev/hunit/types"
)

// Client is the worker-side composition. It shares the timing, counter and
// working-directory sub-components with Aggregate but renders nothing:
// completed tests are serialized as TestResultMsg for the scheduler to
// replay. The local counters exist only for self-consistency checks; the
// scheduler owns the authoritative state.
type Client struct {
	workerID int
	sw       *stopwatch.StopWatch
	counters types.StatusCounters
	cwd      *CWDGuard
	capture  *StdioCapture
	started  int
}

// NewClient builds the worker-side composition.
func NewClient(workerID int, buffer bool) *Client {
	return &Client{
		workerID: workerID,
		sw:       stopwatch.New(),
		counters: types.NewStatusCounters(),
		cwd:      NewCWDGuard(),
		capture:  NewStdioCapture(buffer),
	}
}

// WorkerID returns the worker this composition belongs to.
func (c *Client) WorkerID() int {
	return c.workerID
}

// StartTest begins one test: the shared stopwatch starts on the first test
// and the working directory is snapshotted.
func (c *Client) StartTest(test string) error {
	c.started++
	if !c.sw.IsStarted() {
		if err := c.sw.Start(); err != nil {
			return err
		}
	}
	if err := c.cwd.Snapshot(); err != nil {
		return fmt.Errorf("snapshotting working directory: %w", err)
	}
	return nil
}

// Capture begins stdio capture for one test.
func (c *Client) Capture() (*CaptureHandle, error) {
	return c.capture.Capture()
}

// FinishTest closes the timing window, tallies every sub-outcome locally
// and composes the message the scheduler will replay. The
// working-directory check runs here: a violation is a worker-fatal fault,
// not a test outcome.
func (c *Client) FinishTest(test string, subs []types.SubtestResult, stdout, stderr string) (*types.TestResultMsg, error) {
	if err := c.sw.Split(); err != nil {
		return nil, err
	}
	for _, sub := range subs {
		c.counters.Inc(sub.Status)
	}
	if err := c.cwd.Check(); err != nil {
		return nil, fmt.Errorf("after test %s: %w", test, err)
	}
	return &types.TestResultMsg{
		WorkerID: c.workerID,
		Test:     test,
		Stdout:   stdout,
		Stderr:   stderr,
		Elapsed:  c.sw.LastSplitTime(),
		Subs:     subs,
	}, nil
}

// Counters returns the worker-local tallies.
func (c *Client) Counters() types.StatusCounters {
	return c.counters.Clone()
}

// TestsRun returns the number of tests this worker started.
func (c *Client) TestsRun() int {
	return c.started
}
