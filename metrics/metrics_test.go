package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/hunit-dev/hunit/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
		{
			name: "error with multiple underscores",
			err:  errors.New("test__error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
}

func TestRecordErrorDetails(t *testing.T) {
	// Test with nil error
	RecordErrorDetails("test", nil)

	// Test with actual error
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordOutcome(t *testing.T) {
	RecordOutcome("run1", "pkg.TestFoo", types.StatusPass)
	RecordOutcome("run1", "pkg.TestBar", types.StatusFail)
	RecordOutcome("run1", "pkg.TestBaz", types.StatusXPass)

	// Invalid statuses are dropped rather than polluting the label set.
	RecordOutcome("run1", "pkg.TestQux", types.Status("bogus"))
}

func TestRecordRun(t *testing.T) {
	RecordRun("run1", "pass", 3, 0, time.Second)
	RecordRun("run2", "fail", 3, 1, 500*time.Millisecond)
}
