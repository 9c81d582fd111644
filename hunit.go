// Package hunit wires the test-execution engine together: test selection,
// failure-list front-loading, the run itself (in-process or across a worker
// pool), summary rendering and state persistence.
package hunit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hunit-dev/hunit/exitcodes"
	"github.com/hunit-dev/hunit/faillist"
	"github.com/hunit-dev/hunit/logging"
	"github.com/hunit-dev/hunit/metrics"
	"github.com/hunit-dev/hunit/printer"
	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/result"
	"github.com/hunit-dev/hunit/runner"
	"github.com/hunit-dev/hunit/statusdb"
	"github.com/hunit-dev/hunit/types"
)

// RunResult is the distilled outcome of one complete run.
type RunResult struct {
	RunID    string
	TestsRun int
	Counters types.StatusCounters
	Wall     time.Duration
	Passed   bool
}

// App is the engine's top-level lifecycle: one-shot or watch mode.
type App struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	scheduler WatchScheduler
	lastRun   *RunResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New builds the engine over the given registry. A nil registry uses the
// process-wide one populated by init-time registration.
func New(ctx context.Context, config *Config, version string, reg *registry.Registry, shutdownCallback func(error)) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		reg = registry.Global()
	}

	config.Log.Debug("Creating engine with config",
		"jobs", config.Jobs,
		"failfast", config.Failfast,
		"pattern", config.Pattern,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	return &App{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		scheduler:        NewIntervalScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the tests, once or periodically at the configured interval.
func (a *App) Start(ctx context.Context) error {
	// Panic recovery so a crashed engine still exits with the runtime
	// error code rather than the Go panic exit status.
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.running.Store(true)

	a.scheduler.RegisterCallback(a.runTests)
	if err := a.scheduler.Start(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Tests completed, exiting (run-once mode)")

		if a.lastRun != nil && !a.lastRun.Passed {
			failed := a.lastRun.Counters.Get(types.StatusFail) +
				a.lastRun.Counters.Get(types.StatusError) +
				a.lastRun.Counters.Get(types.StatusXPass)
			return NewTestFailureError(fmt.Sprintf("%d of %d tests failed",
				failed, a.lastRun.TestsRun))
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.config.Log.Debug("hunit started successfully")
	return nil
}

// Stop stops the watch scheduler.
func (a *App) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping hunit")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	if err := a.scheduler.Stop(); err != nil {
		return err
	}

	a.config.Log.Info("hunit stopped successfully")
	return nil
}

// Stopped returns true if the service is stopped.
func (a *App) Stopped() bool {
	return !a.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.scheduler.WaitForShutdown(ctx)
}

// LastRun returns the outcome of the most recent completed run.
func (a *App) LastRun() *RunResult {
	return a.lastRun
}

// runTests performs one complete run. A non-nil error is a runtime fault;
// test failures are recorded on the RunResult instead.
func (a *App) runTests() error {
	tests, err := a.selectTests()
	if err != nil {
		return NewRuntimeError(err)
	}
	if len(tests) == 0 {
		a.config.Log.Warn("No tests matched the selection", "pattern", a.config.Pattern)
		a.lastRun = &RunResult{Passed: true, Counters: types.NewStatusCounters()}
		return nil
	}

	runID := uuid.New().String()
	a.config.Log.Info("Starting test run", "run_id", runID, "tests", len(tests), "jobs", a.config.Jobs)

	// Selection fingerprint keys the previous-run baseline: deltas are
	// only shown against a run of the same test set.
	modPath, err := statusdb.ModulePath(".")
	if err != nil {
		a.config.Log.Warn("Failed to resolve module path", "err", err)
	}
	fingerprint := statusdb.Fingerprint(tests, modPath, a.config.Pattern)

	dbPath := filepath.Join(a.config.StateDir, statusdb.DefaultFilename)
	snap, err := statusdb.Load(dbPath)
	if err != nil {
		a.config.Log.Warn("Failed to load status db", "err", err)
	}
	baseline := statusdb.Baseline(snap, fingerprint)

	// Previously failing tests run first, so failures surface early and
	// failfast triggers as soon as possible.
	flPath := filepath.Join(a.config.StateDir, faillist.DefaultFilename)
	prevFailed, err := faillist.Load(flPath)
	if err != nil {
		return NewRuntimeError(err)
	}
	tests = faillist.Reorder(tests, prevFailed)

	flog, err := a.newFileLogger(runID)
	if err != nil {
		return NewRuntimeError(err)
	}
	defer flog.Complete() //nolint:errcheck

	topDir, _ := os.Getwd()
	p := printer.New(printer.Config{
		Live: printer.LinePrinterConfig{
			Out:    os.Stdout,
			Mirror: flog.Writer(),
			Quiet:  a.config.Quiet,
		},
		NoColor:     a.config.NoColor,
		TopDir:      topDir,
		StripFrames: a.config.StripFrames,
	})

	agg := result.NewAggregate(result.Options{
		Printer:    p,
		TotalTests: len(tests),
		Failfast:   a.config.Failfast,
		Buffer:     a.config.Buffer,
		Log:        a.config.Log,
	})
	consumer := &runConsumer{runID: runID, flog: flog}

	if a.config.Jobs > 1 {
		err = a.runConcurrent(agg, p, consumer, tests)
	} else {
		err = runner.NewRunner(a.registry, agg, consumer, a.config.Log).
			Run(a.ctx, tests)
	}
	if err != nil {
		p.NewLine()
		a.config.Log.Error("Runtime error running tests", "error", err)
		metrics.RecordErrorDetails("test run failed", err)
		return NewRuntimeError(err)
	}

	p.NewLine()
	agg.Summarize(baseline)

	a.lastRun = &RunResult{
		RunID:    runID,
		TestsRun: agg.TestsRun(),
		Counters: agg.Counters(),
		Wall:     agg.WallTime(),
		Passed:   agg.WasSuccessful(),
	}
	a.persistRunState(runID, fingerprint, flPath, dbPath, prevFailed, agg)

	runStatus := "pass"
	if !agg.WasSuccessful() {
		runStatus = "fail"
	}
	metrics.RecordRun(runID, runStatus, agg.TestsRun(), len(agg.ErrorSet()), agg.WallTime())

	a.config.Log.Info("Test run completed", "run_id", runID, "status", runStatus)
	return nil
}

// selectTests resolves the run order: every registered test, filtered by
// the selection pattern.
func (a *App) selectTests() ([]string, error) {
	ids := a.registry.Identifiers()
	if a.config.Pattern == "" {
		return ids, nil
	}

	re, err := regexp.Compile(a.config.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid test pattern %q: %w", a.config.Pattern, err)
	}
	var selected []string
	for _, id := range ids {
		if re.MatchString(id) {
			selected = append(selected, id)
		}
	}
	return selected, nil
}

// newFileLogger builds the per-run log directory with its sinks.
func (a *App) newFileLogger(runID string) (*logging.FileLogger, error) {
	runDir := filepath.Join(a.config.LogDir, logging.RunDirectoryPrefix+runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", runDir, err)
	}
	jsonSink, err := logging.NewRawJSONSink(runDir)
	if err != nil {
		return nil, err
	}
	htmlSink, err := logging.NewHTMLReportSink(runDir)
	if err != nil {
		return nil, err
	}
	return logging.NewFileLogger(a.config.LogDir, runID,
		jsonSink, logging.NewTextSummarySink(runDir), htmlSink)
}

// runConcurrent executes the tests across a pool of child-process workers.
func (a *App) runConcurrent(agg *result.Aggregate, p *printer.ResultPrinter,
	consumer runner.ResultConsumer, tests []string) error {

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving engine binary: %w", err)
	}
	sched := runner.NewScheduler(agg, runner.SchedulerOptions{
		Jobs:         a.config.Jobs,
		Spawn:        runner.NewExecSpawner(exe, a.config.WorkerArgs),
		Consumer:     consumer,
		WorkerErrors: p,
		Log:          a.config.Log,
	})
	return sched.Run(a.ctx, tests)
}

// persistRunState writes the next failure list and the status db snapshot.
// Persistence failures are logged, never fatal: the run outcome stands.
func (a *App) persistRunState(runID, fingerprint, flPath, dbPath string,
	prevFailed []string, agg *result.Aggregate) {

	next := faillist.Update(prevFailed, agg.ErrorSet(), agg.SuccessSet())
	if err := faillist.Save(flPath, next); err != nil {
		a.config.Log.Warn("Failed to save failure list", "err", err)
	}

	err := statusdb.Save(dbPath, &statusdb.Snapshot{
		Fingerprint: fingerprint,
		RunID:       runID,
		Timestamp:   time.Now().UTC(),
		TestsRun:    agg.TestsRun(),
		Counters:    agg.Counters(),
	})
	if err != nil {
		a.config.Log.Warn("Failed to save status db", "err", err)
	}
}

// runConsumer fans completed-test messages into metrics and the durable
// run log.
type runConsumer struct {
	runID string
	flog  *logging.FileLogger
}

func (c *runConsumer) Consume(msg *types.TestResultMsg) error {
	for _, sub := range msg.Subs {
		metrics.RecordOutcome(c.runID, msg.Test, sub.Status)
	}
	return c.flog.Consume(msg)
}
