// Package result implements the layered outcome-tracking state machine both
// runners drive: progress counting, split timing, status tallies,
// error/success identifier sets, failfast stop, working-directory integrity
// and stdio capture, composed as named sub-components with one ordered
// recording pipeline.
//
// Two concrete compositions exist over the same sub-components: Aggregate
// (single-process runner and scheduler side) and Client (worker side, which
// serializes outcomes instead of printing them). Replaying a worker's
// TestResultMsg through an Aggregate yields the same counters and sets the
// single-process path produces.
package result

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hunit-dev/hunit/stopwatch"
	"github.com/hunit-dev/hunit/types"
)

// Printer receives structured outcome events for rendering. Implemented by
// printer.ResultPrinter; a nil Printer disables rendering (useful in tests).
type Printer interface {
	PrintMessage(test string, status types.Status, counters types.StatusCounters,
		progress float64, mean, last time.Duration,
		errInfo *types.ErrorInfo, reason string, params map[string]string)
	PrintIOs(test, stdout, stderr string)
	PrintSummary(testsRun int, prev, counters types.StatusCounters,
		totalTestTime, mean, wall time.Duration)
}

// Options configures an Aggregate.
type Options struct {
	Printer    Printer
	TotalTests int
	Failfast   bool
	// Buffer controls stdio capture; when false capture is a pass-through.
	Buffer bool
	Log    log.Logger
}

// Aggregate is the server-side/local composition. It is driven from a
// single goroutine (the runner loop or the scheduler loop); cross-process
// state arrives only as replayed messages.
type Aggregate struct {
	log     log.Logger
	printer Printer
	total   int

	failfast     bool
	stopped      bool
	firstFailure *types.ErrorInfo

	started       int
	sw            *stopwatch.StopWatch
	wall          *stopwatch.StopWatch
	counters      types.StatusCounters
	errSet        map[string]struct{}
	succSet       map[string]struct{}
	totalTestTime time.Duration

	cwd     *CWDGuard
	capture *StdioCapture

	// curTestErroneous tracks whether any outcome of the test currently in
	// flight was erroneous, to decide whether its captured io is printed.
	curTestErroneous bool
}

// NewAggregate builds the full composition.
func NewAggregate(opts Options) *Aggregate {
	logger := opts.Log
	if logger == nil {
		logger = log.Root()
	}
	return &Aggregate{
		log:      logger.New("component", "result"),
		printer:  opts.Printer,
		total:    opts.TotalTests,
		failfast: opts.Failfast,
		sw:       stopwatch.New(),
		wall:     stopwatch.New(),
		counters: types.NewStatusCounters(),
		errSet:   make(map[string]struct{}),
		succSet:  make(map[string]struct{}),
		cwd:      NewCWDGuard(),
		capture:  NewStdioCapture(opts.Buffer),
	}
}

// StartTest begins tracking one test: progress increments, the shared and
// wall stopwatches start on the first test, and the working directory is
// snapshotted.
func (a *Aggregate) StartTest(test string) error {
	a.started++
	a.curTestErroneous = false
	if !a.sw.IsStarted() {
		if err := a.sw.Start(); err != nil {
			return err
		}
		if err := a.wall.Start(); err != nil {
			return err
		}
	}
	if err := a.cwd.Snapshot(); err != nil {
		return fmt.Errorf("snapshotting working directory: %w", err)
	}
	return nil
}

// AddOutcome records one outcome unit produced locally. The pipeline order
// is fixed: split timing, tallies and sets, rendering, then the failfast
// check, so the stop flag is only raised after the outcome was counted.
func (a *Aggregate) AddOutcome(test string, sub types.SubtestResult) error {
	if err := a.sw.Split(); err != nil {
		return err
	}
	last := a.sw.LastSplitTime()
	a.totalTestTime += last
	a.record(test, sub, last)
	return nil
}

// record runs the shared tally/render/failfast pipeline for one outcome.
func (a *Aggregate) record(test string, sub types.SubtestResult, last time.Duration) {
	a.counters.Inc(sub.Status)
	if sub.Status.IsErroneous() {
		a.errSet[test] = struct{}{}
		delete(a.succSet, test)
		a.curTestErroneous = true
	} else if _, failed := a.errSet[test]; !failed {
		a.succSet[test] = struct{}{}
	}

	if a.printer != nil {
		a.printer.PrintMessage(test, sub.Status, a.counters.Clone(), a.Progress(),
			a.sw.MeanSplitTime(), last, sub.Error, sub.Reason, sub.Params)
	}

	if a.failfast && sub.Status.IsErroneous() && !a.stopped {
		a.stopped = true
		a.firstFailure = sub.Error
		a.log.Debug("Failfast triggered", "test", test, "status", sub.Status)
	}
}

// StopTest finishes tracking one test: captured io is rendered (once per
// outer test, after all sub-results are known, and only when an outcome was
// erroneous) and the working-directory invariant is checked. A changed
// directory is a fatal run error, not a test outcome.
func (a *Aggregate) StopTest(test, stdout, stderr string) error {
	if a.curTestErroneous && a.printer != nil {
		a.printer.PrintIOs(test, stdout, stderr)
	}
	if err := a.cwd.Check(); err != nil {
		return fmt.Errorf("after test %s: %w", test, err)
	}
	return nil
}

// ProcessResult replays a worker's completed-test message through the same
// pipeline local execution uses: one split per completed test, every
// sub-outcome counted independently, io printed after all sub-results.
func (a *Aggregate) ProcessResult(msg *types.TestResultMsg) error {
	if err := a.sw.Split(); err != nil {
		return err
	}
	a.totalTestTime += msg.Elapsed
	a.curTestErroneous = false
	for _, sub := range msg.Subs {
		a.record(msg.Test, sub, msg.Elapsed)
	}
	if a.curTestErroneous && a.printer != nil {
		a.printer.PrintIOs(msg.Test, msg.Stdout, msg.Stderr)
	}
	return nil
}

// Capture begins stdio capture for one test. The returned handle must be
// released (deferred) to restore the original streams.
func (a *Aggregate) Capture() (*CaptureHandle, error) {
	return a.capture.Capture()
}

// Stop raises the stop flag manually.
func (a *Aggregate) Stop() {
	a.stopped = true
}

// ShouldStop reports whether the driving loop must cease starting new work.
func (a *Aggregate) ShouldStop() bool {
	return a.stopped
}

// FirstFailure returns the error captured when failfast triggered, if any.
func (a *Aggregate) FirstFailure() *types.ErrorInfo {
	return a.firstFailure
}

// TestsRun returns the number of tests started.
func (a *Aggregate) TestsRun() int {
	return a.started
}

// Progress returns started/total in [0,1].
func (a *Aggregate) Progress() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.started) / float64(a.total)
}

// Counters returns a copy of the status tallies.
func (a *Aggregate) Counters() types.StatusCounters {
	return a.counters.Clone()
}

// WasSuccessful reports whether no erroneous outcome was recorded.
func (a *Aggregate) WasSuccessful() bool {
	return a.counters.WasSuccessful()
}

// ErrorSet returns the identifiers that produced an erroneous outcome.
func (a *Aggregate) ErrorSet() map[string]struct{} {
	return cloneSet(a.errSet)
}

// SuccessSet returns the identifiers whose outcomes were all non-erroneous.
func (a *Aggregate) SuccessSet() map[string]struct{} {
	return cloneSet(a.succSet)
}

// TotalTestTime returns the accumulated per-test execution time. In
// concurrent runs this is the sum of worker-side elapsed times, which
// divided by WallTime gives the parallel speedup ratio.
func (a *Aggregate) TotalTestTime() time.Duration {
	return a.totalTestTime
}

// WallTime returns the real elapsed time since the first test started.
func (a *Aggregate) WallTime() time.Duration {
	return a.wall.TotalTime()
}

// Summarize renders the final aggregate line. prev holds the previous run's
// counters for the delta display; nil means first run.
func (a *Aggregate) Summarize(prev types.StatusCounters) {
	if a.printer == nil {
		return
	}
	a.printer.PrintSummary(a.started, prev, a.counters.Clone(),
		a.totalTestTime, a.sw.MeanSplitTime(), a.WallTime())
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	cp := make(map[string]struct{}, len(set))
	for k := range set {
		cp[k] = struct{}{}
	}
	return cp
}
