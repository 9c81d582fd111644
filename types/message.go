package types

import "time"

// ErrorInfo carries a formatted test failure across the process boundary:
// the error kind, its message and the formatted trace lines.
type ErrorInfo struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Trace   []string `json:"trace,omitempty"`
}

// SubtestResult is one outcome unit. A test that iterates sub-cases yields
// one SubtestResult per sub-case plus share a single timing window; a plain
// test yields exactly one with empty Params.
type SubtestResult struct {
	Status Status            `json:"status"`
	Error  *ErrorInfo        `json:"error,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// TestResultMsg is the unit of worker-to-scheduler communication. Produced
// exactly once per completed test by a worker and consumed exactly once by
// the scheduler, which replays it through its own result composition.
type TestResultMsg struct {
	WorkerID int             `json:"workerId"`
	Test     string          `json:"test"`
	Stdout   string          `json:"stdout,omitempty"`
	Stderr   string          `json:"stderr,omitempty"`
	Elapsed  time.Duration   `json:"elapsed"`
	Subs     []SubtestResult `json:"subs"`
}

// WorkerErrMsg signals that a worker hit an uncaught fault outside normal
// test outcome reporting and is about to terminate. It is rendered
// distinctly and never counted as a test outcome.
type WorkerErrMsg struct {
	WorkerID int      `json:"workerId"`
	Kind     string   `json:"kind"`
	Trace    []string `json:"trace"`
}
