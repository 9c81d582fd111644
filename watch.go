package hunit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// WatchScheduler triggers test runs: once, or periodically in watch mode.
type WatchScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// IntervalScheduler re-runs a callback on a fixed interval. The first run
// happens synchronously inside Start so startup faults surface to the
// caller; later runs only log their errors.
type IntervalScheduler struct {
	log      log.Logger
	interval time.Duration
	runOnce  bool

	callback func() error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIntervalScheduler builds a scheduler. With runOnce the interval is
// ignored and Start returns after the single run.
func NewIntervalScheduler(interval time.Duration, runOnce bool, logger log.Logger) *IntervalScheduler {
	if logger == nil {
		logger = log.Root()
	}
	return &IntervalScheduler{
		log:      logger.New("component", "watch"),
		interval: interval,
		runOnce:  runOnce,
	}
}

// RegisterCallback sets the run callback. Must be called before Start.
func (s *IntervalScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start runs the callback once and, in watch mode, keeps re-running it on
// the interval until Stop or context cancellation.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("no callback registered")
	}
	if err := s.callback(); err != nil {
		return err
	}
	if s.runOnce {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("Watch mode started", "interval", s.interval)
	go s.loop(ctx)
	return nil
}

func (s *IntervalScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Watch loop exiting", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := s.callback(); err != nil {
				s.log.Error("Periodic run failed", "err", err)
			}
		}
	}
}

// Stop cancels the watch loop and waits for it to exit. Safe to call more
// than once; a no-op when no loop is running.
func (s *IntervalScheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Stopped reports whether no watch loop is running.
func (s *IntervalScheduler) Stopped() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// WaitForShutdown blocks until the watch loop has exited or ctx expires.
func (s *IntervalScheduler) WaitForShutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
