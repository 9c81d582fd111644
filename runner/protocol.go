package runner

import (
	"encoding/json"
	"io"

	"github.com/hunit-dev/hunit/types"
)

// Worker channel file descriptors inherited by child processes. The
// command and result streams are dedicated pipes, never stdin/stdout, so
// test code writing to the standard streams cannot corrupt the protocol.
const (
	WorkerCmdFD    = 3
	WorkerResultFD = 4
)

// command is one scheduler-to-worker instruction: run the named test, or
// stop when the sentinel is set.
type command struct {
	Test string `json:"test,omitempty"`
	Stop bool   `json:"stop,omitempty"`
}

// stopCommand is the stop sentinel.
var stopCommand = command{Stop: true}

// envelope wraps the two worker-to-scheduler message variants. Exactly one
// field is set.
type envelope struct {
	Result *types.TestResultMsg `json:"result,omitempty"`
	Error  *types.WorkerErrMsg  `json:"error,omitempty"`
}

// channel is one end of a bidirectional worker connection, carrying JSON
// lines in both directions.
type channel struct {
	enc     *json.Encoder
	dec     *json.Decoder
	closers []io.Closer
}

// newChannel wraps a read and a write stream. Any stream that implements
// io.Closer is closed by Close.
func newChannel(r io.Reader, w io.Writer) *channel {
	ch := &channel{
		enc: json.NewEncoder(w),
		dec: json.NewDecoder(r),
	}
	if c, ok := r.(io.Closer); ok {
		ch.closers = append(ch.closers, c)
	}
	if c, ok := w.(io.Closer); ok {
		ch.closers = append(ch.closers, c)
	}
	return ch
}

// send writes one message. The encoder appends the newline delimiter.
func (ch *channel) send(v any) error {
	return ch.enc.Encode(v)
}

// recv blocks for the next message. It returns io.EOF when the other side
// closed the connection.
func (ch *channel) recv(v any) error {
	return ch.dec.Decode(v)
}

// Close closes both underlying streams.
func (ch *channel) Close() error {
	var firstErr error
	for _, c := range ch.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
