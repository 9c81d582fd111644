package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/result"
	"github.com/hunit-dev/hunit/types"
)

// RunWorker is the child-process side of the concurrent runner: a loop
// that receives commands on r, executes tests from the registry and sends
// one envelope per completed test on w. It returns nil after a stop
// command; an EOF on the command stream means the parent died and is
// fatal. Machinery faults inside the loop are reported as error envelopes
// before the worker terminates, so the scheduler can render them
// distinctly from test outcomes.
func RunWorker(ctx context.Context, workerID int, reg *registry.Registry, r io.Reader, w io.Writer, buffer bool, logger log.Logger) error {
	if logger == nil {
		logger = log.Root()
	}
	logger = logger.New("component", "worker", "worker_id", workerID)

	ch := newChannel(r, w)
	client := result.NewClient(workerID, buffer)
	logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var cmd command
		if err := ch.recv(&cmd); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("parent process of worker %d died unexpectedly", workerID)
			}
			return fmt.Errorf("worker %d: reading command: %w", workerID, err)
		}
		if cmd.Stop {
			logger.Debug("Worker stopping", "tests_run", client.TestsRun())
			return nil
		}

		msg, err := runOne(client, reg, cmd.Test)
		if err != nil {
			// Not a test outcome: the worker itself is broken. Report and
			// terminate; the scheduler redistributes remaining tests.
			sendErr := ch.send(envelope{Error: &types.WorkerErrMsg{
				WorkerID: workerID,
				Kind:     err.Error(),
				Trace:    strings.Split(strings.TrimRight(string(debug.Stack()), "\n"), "\n"),
			}})
			if sendErr != nil {
				return fmt.Errorf("worker %d: reporting fault %q: %w", workerID, err, sendErr)
			}
			return err
		}
		if err := ch.send(envelope{Result: msg}); err != nil {
			return fmt.Errorf("worker %d: sending result for %s: %w", workerID, cmd.Test, err)
		}
	}
}

// runOne executes one test inside the worker: capture stdio, run the
// registered function, compose the completed-test message. A returned
// error is a machinery fault (unknown test, capture failure, changed
// working directory), never a test failure.
func runOne(client *result.Client, reg *registry.Registry, test string) (*types.TestResultMsg, error) {
	fn, err := reg.Lookup(test)
	if err != nil {
		return nil, err
	}
	if err := client.StartTest(test); err != nil {
		return nil, err
	}

	h, err := client.Capture()
	if err != nil {
		return nil, fmt.Errorf("capturing stdio for %s: %w", test, err)
	}
	subs := registry.RunCase(test, fn, h.Stdout(), h.Stderr())
	stdout, stderr := h.Release()

	return client.FinishTest(test, subs, stdout, stderr)
}
