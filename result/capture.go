package result

import (
	"io"
	"os"
	"sync"
)

// StdioCapture redirects the process-global standard streams into per-test
// buffers for the duration of one test. When buffering is disabled (debugger
// attached, --no-buffer) it degrades to a pass-through that captures
// nothing. Restoration of the original streams is guaranteed by releasing
// the handle, which callers defer.
type StdioCapture struct {
	enabled  bool
	maxBytes int
}

// NewStdioCapture returns a capture component; enabled=false yields the
// pass-through behavior.
func NewStdioCapture(enabled bool) *StdioCapture {
	return &StdioCapture{enabled: enabled, maxBytes: defaultTailBytes}
}

// Enabled reports whether capture is active.
func (s *StdioCapture) Enabled() bool {
	return s.enabled
}

// Capture swaps os.Stdout and os.Stderr for pipe ends feeding per-test tail
// buffers. Exactly one capture may be active at a time; both runners execute
// tests sequentially within a process so this is never violated.
func (s *StdioCapture) Capture() (*CaptureHandle, error) {
	h := &CaptureHandle{
		enabled: s.enabled,
		origOut: os.Stdout,
		origErr: os.Stderr,
	}
	if !s.enabled {
		return h, nil
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}

	h.outW, h.errW = outW, errW
	h.outBuf = newTailBuffer(s.maxBytes)
	h.errBuf = newTailBuffer(s.maxBytes)

	os.Stdout = outW
	os.Stderr = errW

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		_, _ = io.Copy(h.outBuf, outR)
		outR.Close()
	}()
	go func() {
		defer h.wg.Done()
		_, _ = io.Copy(h.errBuf, errR)
		errR.Close()
	}()

	return h, nil
}

// CaptureHandle is one scoped stdio acquisition.
type CaptureHandle struct {
	enabled bool

	origOut, origErr *os.File
	outW, errW       *os.File
	outBuf, errBuf   *tailBuffer

	wg       sync.WaitGroup
	released bool
	stdout   string
	stderr   string
}

// Stdout returns the writer test code should print to. Under capture this
// is the redirected pipe, otherwise the real standard output.
func (h *CaptureHandle) Stdout() io.Writer {
	if h.enabled {
		return h.outW
	}
	return h.origOut
}

// Stderr is the error-stream counterpart of Stdout.
func (h *CaptureHandle) Stderr() io.Writer {
	if h.enabled {
		return h.errW
	}
	return h.origErr
}

// Release restores the original streams unconditionally and returns the
// captured output. It is idempotent.
func (h *CaptureHandle) Release() (stdout, stderr string) {
	if h.released {
		return h.stdout, h.stderr
	}
	h.released = true

	os.Stdout = h.origOut
	os.Stderr = h.origErr

	if !h.enabled {
		return "", ""
	}

	// Closing the write ends lets the copier goroutines drain and exit.
	h.outW.Close()
	h.errW.Close()
	h.wg.Wait()

	h.stdout = h.outBuf.String()
	h.stderr = h.errBuf.String()
	return h.stdout, h.stderr
}
