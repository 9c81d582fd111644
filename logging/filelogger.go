// Package logging persists run output: a durable append-only mirror of the
// live display plus pluggable sinks consuming every completed-test message.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hunit-dev/hunit/types"
)

// RunDirectoryPrefix is the standardized prefix for per-run directories.
const RunDirectoryPrefix = "testrun-"

// ResultSink consumes completed-test messages. Sinks receive every message
// exactly once, in aggregation order.
type ResultSink interface {
	Consume(msg *types.TestResultMsg, runID string) error
	// Complete is called when all results have been consumed.
	Complete(runID string) error
}

// FileLogger owns the per-run log directory for the duration of one run:
// it is created (directories as needed) at run start and closed explicitly
// at run end regardless of outcome.
type FileLogger struct {
	baseDir string
	logDir  string
	runID   string

	mu     sync.Mutex
	runLog *AsyncFile
	sinks  []ResultSink
	closed bool
}

// NewFileLogger creates the run directory and opens the run log.
func NewFileLogger(baseDir, runID string, sinks ...ResultSink) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	runLog, err := NewAsyncFile(filepath.Join(logDir, "run.log"))
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		baseDir: baseDir,
		logDir:  logDir,
		runID:   runID,
		runLog:  runLog,
		sinks:   sinks,
	}, nil
}

// RunDir returns the per-run directory path.
func (l *FileLogger) RunDir() string {
	return l.logDir
}

// RunID returns the run identifier this logger belongs to.
func (l *FileLogger) RunID() string {
	return l.runID
}

// Writer returns the durable mirror sink handed to the printer. Writes are
// queued and flushed by a background goroutine so rendering never blocks on
// disk.
func (l *FileLogger) Writer() *AsyncFile {
	return l.runLog
}

// Consume fans one completed-test message out to every sink.
func (l *FileLogger) Consume(msg *types.TestResultMsg) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("file logger already closed")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(msg, l.runID); err != nil {
			return fmt.Errorf("sink %T: %w", sink, err)
		}
	}
	return nil
}

// Complete finalizes every sink and closes the run log. It is safe to call
// on every exit path; only the first call does the work.
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Complete(l.runID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := l.runLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
