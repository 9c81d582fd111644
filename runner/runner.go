// Package runner executes registered tests and feeds their outcomes into
// the result pipeline. Two execution strategies share the same observable
// semantics: the single-process Runner runs tests in the engine's own
// process, and the Scheduler dispatches them to a pool of child-process
// workers speaking a JSON-line protocol over inherited pipes.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"

	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/result"
	"github.com/hunit-dev/hunit/types"
)

// ResultConsumer receives every completed-test message, for durable run
// logging. Implemented by logging.FileLogger; nil disables consumption.
type ResultConsumer interface {
	Consume(msg *types.TestResultMsg) error
}

// Runner executes tests sequentially in-process against an Aggregate.
type Runner struct {
	log      log.Logger
	reg      *registry.Registry
	agg      *result.Aggregate
	consumer ResultConsumer
}

// NewRunner builds a single-process runner.
func NewRunner(reg *registry.Registry, agg *result.Aggregate, consumer ResultConsumer, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.Root()
	}
	return &Runner{
		log:      logger.New("component", "runner"),
		reg:      reg,
		agg:      agg,
		consumer: consumer,
	}
}

// Run executes the given tests in order. The stop flag is honored between
// tests: once raised (failfast or external), no further test starts. A
// non-nil error is a run-machinery fault, not a test failure; test
// failures are visible on the aggregate.
func (r *Runner) Run(ctx context.Context, tests []string) error {
	ctx, span := otel.Tracer("hunit/runner").Start(ctx, "runner.run")
	defer span.End()

	for _, test := range tests {
		if r.agg.ShouldStop() {
			r.log.Debug("Stop flag raised, ceasing execution", "remaining", test)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.runOne(test); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(test string) error {
	fn, err := r.reg.Lookup(test)
	if err != nil {
		return err
	}
	if err := r.agg.StartTest(test); err != nil {
		return err
	}

	h, err := r.agg.Capture()
	if err != nil {
		return fmt.Errorf("capturing stdio for %s: %w", test, err)
	}
	start := time.Now()
	subs := registry.RunCase(test, fn, h.Stdout(), h.Stderr())
	elapsed := time.Since(start)
	stdout, stderr := h.Release()

	for _, sub := range subs {
		if err := r.agg.AddOutcome(test, sub); err != nil {
			return err
		}
	}
	if err := r.agg.StopTest(test, stdout, stderr); err != nil {
		return err
	}

	if r.consumer != nil {
		msg := &types.TestResultMsg{
			Test:    test,
			Stdout:  stdout,
			Stderr:  stderr,
			Elapsed: elapsed,
			Subs:    subs,
		}
		if err := r.consumer.Consume(msg); err != nil {
			r.log.Warn("Result consumer failed", "test", test, "err", err)
		}
	}
	return nil
}
