package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hunit-dev/hunit/types"
)

// RawJSONSink records every completed-test message as one JSON line, so
// other tooling can replay or post-process a run.
type RawJSONSink struct {
	file *AsyncFile
}

// NewRawJSONSink opens results.jsonl inside the run directory.
func NewRawJSONSink(runDir string) (*RawJSONSink, error) {
	file, err := NewAsyncFile(filepath.Join(runDir, "results.jsonl"))
	if err != nil {
		return nil, err
	}
	return &RawJSONSink{file: file}, nil
}

// Consume appends one message as a JSON line.
func (s *RawJSONSink) Consume(msg *types.TestResultMsg, runID string) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling result for %s: %w", msg.Test, err)
	}
	_, err = s.file.Write(append(data, '\n'))
	return err
}

// Complete closes the JSON-lines file.
func (s *RawJSONSink) Complete(runID string) error {
	return s.file.Close()
}

// TextSummarySink tallies outcomes as they arrive and writes a short
// summary.log when the run completes.
type TextSummarySink struct {
	runDir   string
	tests    int
	counters types.StatusCounters
	failed   []string
}

// NewTextSummarySink builds a summary sink writing into the run directory.
func NewTextSummarySink(runDir string) *TextSummarySink {
	return &TextSummarySink{
		runDir:   runDir,
		counters: types.NewStatusCounters(),
	}
}

// Consume tallies one message.
func (s *TextSummarySink) Consume(msg *types.TestResultMsg, runID string) error {
	s.tests++
	erroneous := false
	for _, sub := range msg.Subs {
		s.counters.Inc(sub.Status)
		if sub.Status.IsErroneous() {
			erroneous = true
		}
	}
	if erroneous {
		s.failed = append(s.failed, msg.Test)
	}
	return nil
}

// Complete writes summary.log.
func (s *TextSummarySink) Complete(runID string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d tests\n", runID, s.tests)
	for _, status := range types.AllStatuses {
		if n := s.counters.Get(status); n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", status, n)
		}
	}
	if len(s.failed) > 0 {
		fmt.Fprintf(&b, "failed tests:\n")
		for _, test := range s.failed {
			fmt.Fprintf(&b, "  %s\n", test)
		}
	}
	return os.WriteFile(filepath.Join(s.runDir, "summary.log"), []byte(b.String()), 0644)
}
