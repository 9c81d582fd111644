package registry

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/hunit-dev/hunit/types"
)

// caseAbort and caseSkip are panic sentinels used to unwind a test body
// after FailNow/Skip, mirroring the testing package's runtime.Goexit
// discipline without tying a Case to a dedicated goroutine.
type caseAbort struct{}
type caseSkip struct{ reason string }

// Case is the handle a test function reports through. Output written to
// Stdout/Stderr is captured per test; failures are recorded as data and
// never propagate as control flow beyond the case.
type Case struct {
	id     string
	stdout io.Writer
	stderr io.Writer
	params map[string]string

	expectFail bool
	failed     bool
	errored    bool
	errInfo    *types.ErrorInfo

	record func(types.SubtestResult)
}

// RunCase executes one registered test function and returns its ordered
// outcome units. Output writers receive everything the test prints; they
// are owned by the caller (usually a capture buffer).
func RunCase(id string, fn TestFunc, stdout, stderr io.Writer) []types.SubtestResult {
	var results []types.SubtestResult
	c := &Case{
		id:     id,
		stdout: stdout,
		stderr: stderr,
		record: func(r types.SubtestResult) { results = append(results, r) },
	}
	sub := c.run(fn)
	// A plain test contributes exactly one terminal outcome. With
	// sub-cases, each sub-outcome has already been recorded; the outer
	// frame only adds its own when it failed or skipped outside them.
	if len(results) == 0 || sub.Status != types.StatusPass {
		c.record(sub)
	}
	return results
}

// run executes fn against c and classifies the terminal outcome.
func (c *Case) run(fn TestFunc) (res types.SubtestResult) {
	defer func() {
		r := recover()
		switch v := r.(type) {
		case nil:
		case caseAbort:
			// Failure already recorded by Fatalf/FailNow.
		case caseSkip:
			res = types.SubtestResult{
				Status: types.StatusSkip,
				Reason: v.reason,
				Params: c.params,
			}
			return
		default:
			c.errored = true
			c.errInfo = &types.ErrorInfo{
				Kind:    fmt.Sprintf("panic: %T", v),
				Message: fmt.Sprint(v),
				Trace:   stackLines(),
			}
		}
		res = types.SubtestResult{
			Status: c.terminalStatus(),
			Error:  c.errInfo,
			Params: c.params,
		}
	}()
	fn(c)
	return
}

// terminalStatus maps the recorded flags to a Status, honoring
// ExpectFailure inversion.
func (c *Case) terminalStatus() types.Status {
	switch {
	case c.errored && !c.expectFail:
		return types.StatusError
	case (c.errored || c.failed) && c.expectFail:
		return types.StatusXFail
	case c.failed:
		return types.StatusFail
	case c.expectFail:
		return types.StatusXPass
	default:
		return types.StatusPass
	}
}

// Name returns the identifier of the test this case belongs to.
func (c *Case) Name() string { return c.id }

// Params returns the sub-case parameter mapping, nil for a top-level case.
func (c *Case) Params() map[string]string { return c.params }

// Stdout returns the writer standing in for the test's standard output.
func (c *Case) Stdout() io.Writer { return c.stdout }

// Stderr returns the writer standing in for the test's standard error.
func (c *Case) Stderr() io.Writer { return c.stderr }

// Logf writes a formatted line to the captured standard output.
func (c *Case) Logf(format string, args ...any) {
	fmt.Fprintf(c.stdout, format+"\n", args...)
}

// Failed reports whether a failure has been recorded on this case.
func (c *Case) Failed() bool { return c.failed || c.errored }

// Errorf records a failure and continues executing the test body.
func (c *Case) Errorf(format string, args ...any) {
	c.failed = true
	if c.errInfo == nil {
		c.errInfo = &types.ErrorInfo{
			Kind:    "assertion",
			Message: fmt.Sprintf(format, args...),
			Trace:   stackLines(),
		}
	}
}

// Fatalf records a failure and aborts the test body immediately.
func (c *Case) Fatalf(format string, args ...any) {
	c.Errorf(format, args...)
	panic(caseAbort{})
}

// FailNow aborts the test body, recording a generic failure if none was
// recorded yet.
func (c *Case) FailNow() {
	if !c.Failed() {
		c.Errorf("FailNow called")
	}
	panic(caseAbort{})
}

// Skip aborts the test body and records a skip with the given reason.
func (c *Case) Skip(reason string) {
	panic(caseSkip{reason: reason})
}

// Skipf is Skip with formatting.
func (c *Case) Skipf(format string, args ...any) {
	c.Skip(fmt.Sprintf(format, args...))
}

// ExpectFailure marks this case as expected to fail: a recorded failure
// becomes xfail, a clean pass becomes xpass.
func (c *Case) ExpectFailure() {
	c.expectFail = true
}

// Run executes a parameterized sub-case. Every sub-case records its own
// outcome unit; all sub-cases of one test share the outer timing window.
// It returns false when the sub-case did not pass.
func (c *Case) Run(params map[string]string, fn TestFunc) bool {
	sub := &Case{
		id:     c.id,
		stdout: c.stdout,
		stderr: c.stderr,
		params: params,
		record: c.record,
	}
	res := sub.run(fn)
	c.record(res)
	return !res.Status.IsErroneous()
}

// stackLines formats the current goroutine stack as trace lines, dropping
// the capture frames themselves.
func stackLines() []string {
	raw := strings.Split(strings.TrimRight(string(debug.Stack()), "\n"), "\n")
	// Drop the "goroutine N" header plus the debug.Stack and stackLines
	// frames (two lines each: function, then source location).
	if len(raw) > 5 {
		return append([]string{raw[0]}, raw[5:]...)
	}
	return raw
}
