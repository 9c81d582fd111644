package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/hunit-dev/hunit/result"
)

// WorkerProc is one live worker the scheduler talks to. The exec-based
// implementation wraps a child process; tests substitute in-process fakes.
type WorkerProc interface {
	ID() int
	Send(cmd command) error
	Recv(env *envelope) error
	// CloseChannel closes the protocol streams, unblocking the reader.
	CloseChannel() error
	// Wait blocks until the worker has fully terminated.
	Wait() error
}

// SpawnFunc creates one worker. The context cancels the worker's lifetime.
type SpawnFunc func(ctx context.Context, workerID int) (WorkerProc, error)

// WorkerErrorPrinter renders worker machinery faults. Implemented by
// printer.ResultPrinter.
type WorkerErrorPrinter interface {
	PrintWorkerError(workerID int, kind string, trace []string)
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Jobs         int
	Spawn        SpawnFunc
	Consumer     ResultConsumer
	WorkerErrors WorkerErrorPrinter
	Log          log.Logger
}

// Scheduler dispatches tests to a pool of workers, one in-flight test per
// worker, and replays completed-test messages through the aggregate in
// completion order.
type Scheduler struct {
	log  log.Logger
	agg  *result.Aggregate
	opts SchedulerOptions
}

// NewScheduler builds a concurrent scheduler over the given aggregate.
func NewScheduler(agg *result.Aggregate, opts SchedulerOptions) *Scheduler {
	logger := opts.Log
	if logger == nil {
		logger = log.Root()
	}
	return &Scheduler{
		log:  logger.New("component", "scheduler"),
		agg:  agg,
		opts: opts,
	}
}

// workerEvent is one envelope attributed to the worker connection it
// arrived on. The attribution comes from the reader goroutine, not the
// message body, so a confused worker cannot misattribute its output.
type workerEvent struct {
	workerID int
	env      envelope
}

// Run executes the given tests across min(len(tests), jobs) workers.
// Every worker gets one bootstrap test; each completion triggers the next
// dispatch to the worker that finished, until the queue drains or the
// stop flag is raised. All exit paths stop and reap every worker before
// returning.
func (s *Scheduler) Run(ctx context.Context, tests []string) error {
	if len(tests) == 0 {
		return nil
	}
	n := s.opts.Jobs
	if n < 1 {
		n = 1
	}
	if n > len(tests) {
		n = len(tests)
	}

	ctx, span := otel.Tracer("hunit/runner").Start(ctx, "scheduler.run")
	defer span.End()

	s.log.Debug("Starting worker pool", "workers", n, "tests", len(tests))

	workers := make(map[int]WorkerProc, n)
	stopped := make(map[int]bool, n)
	dead := make(map[int]bool, n)
	defer func() {
		// Guaranteed teardown: every still-running worker is stopped,
		// its channel closed and its process reaped.
		for id, w := range workers {
			if !stopped[id] {
				_ = w.Send(stopCommand)
			}
			_ = w.CloseChannel()
			if err := w.Wait(); err != nil {
				s.log.Warn("Worker exited with error", "worker_id", id, "err", err)
			}
		}
	}()

	for i := 0; i < n; i++ {
		w, err := s.opts.Spawn(ctx, i)
		if err != nil {
			return fmt.Errorf("spawning worker %d: %w", i, err)
		}
		workers[i] = w
	}

	// One reader goroutine per worker merges envelopes into a single
	// event stream; EOF means the worker exited and ends its reader.
	events := make(chan workerEvent, n)
	readers, _ := errgroup.WithContext(ctx)
	for id, w := range workers {
		id, w := id, w
		readers.Go(func() error {
			for {
				var env envelope
				if err := w.Recv(&env); err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, fs.ErrClosed) {
						return nil
					}
					return fmt.Errorf("worker %d: reading envelope: %w", id, err)
				}
				select {
				case events <- workerEvent{workerID: id, env: env}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	queue := tests
	dispatch := func(w WorkerProc) error {
		test := queue[0]
		queue = queue[1:]
		if err := s.agg.StartTest(test); err != nil {
			return err
		}
		return w.Send(command{Test: test})
	}
	stop := func(id int) {
		if stopped[id] {
			return
		}
		stopped[id] = true
		if err := workers[id].Send(stopCommand); err != nil {
			s.log.Warn("Failed to send stop", "worker_id", id, "err", err)
		}
	}

	inflight := 0
	for _, w := range workers {
		if err := dispatch(w); err != nil {
			return err
		}
		inflight++
	}

	var runErr error
	for inflight > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			inflight--
			switch {
			case ev.env.Result != nil:
				if err := s.agg.ProcessResult(ev.env.Result); err != nil {
					return err
				}
				if s.opts.Consumer != nil {
					if err := s.opts.Consumer.Consume(ev.env.Result); err != nil {
						s.log.Warn("Result consumer failed", "test", ev.env.Result.Test, "err", err)
					}
				}
				if len(queue) > 0 && !s.agg.ShouldStop() {
					if err := dispatch(workers[ev.workerID]); err != nil {
						return err
					}
					inflight++
				} else {
					stop(ev.workerID)
				}
			case ev.env.Error != nil:
				// The worker is terminating. Render the fault distinctly
				// from test outcomes and carry on with the surviving
				// workers; its in-flight test produced no outcome.
				if s.opts.WorkerErrors != nil {
					s.opts.WorkerErrors.PrintWorkerError(ev.workerID, ev.env.Error.Kind, ev.env.Error.Trace)
				}
				stopped[ev.workerID] = true
				dead[ev.workerID] = true
				s.log.Warn("Worker terminated on fault", "worker_id", ev.workerID, "kind", ev.env.Error.Kind)
			default:
				return fmt.Errorf("worker %d: empty envelope", ev.workerID)
			}
		}
	}

	if len(queue) > 0 && !s.agg.ShouldStop() {
		runErr = fmt.Errorf("all workers terminated, %d tests never ran", len(queue))
	}

	for id := range workers {
		stop(id)
		_ = workers[id].CloseChannel()
	}
	if err := readers.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	for id, w := range workers {
		if err := w.Wait(); err != nil {
			// A faulted worker exits non-zero; that was already rendered.
			if dead[id] {
				s.log.Warn("Worker exited with error", "worker_id", id, "err", err)
				continue
			}
			if runErr == nil {
				runErr = fmt.Errorf("worker %d: %w", id, err)
			}
		}
	}
	workers = nil
	return runErr
}
