package runner

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunit-dev/hunit/types"
)

func TestChannelRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := newChannel(bytes.NewReader(nil), &buf)
	reader := newChannel(&buf, io.Discard)

	require.NoError(t, writer.send(command{Test: "pkg.TestOne"}))
	require.NoError(t, writer.send(stopCommand))

	var cmd command
	require.NoError(t, reader.recv(&cmd))
	assert.Equal(t, "pkg.TestOne", cmd.Test)
	assert.False(t, cmd.Stop)

	require.NoError(t, reader.recv(&cmd))
	assert.True(t, cmd.Stop)
}

func TestChannelEnvelopeVariants(t *testing.T) {
	var buf bytes.Buffer
	writer := newChannel(bytes.NewReader(nil), &buf)
	reader := newChannel(&buf, io.Discard)

	require.NoError(t, writer.send(envelope{Result: &types.TestResultMsg{
		Test:    "pkg.TestOne",
		Elapsed: 5 * time.Millisecond,
		Subs:    []types.SubtestResult{{Status: types.StatusPass}},
	}}))
	require.NoError(t, writer.send(envelope{Error: &types.WorkerErrMsg{
		WorkerID: 2,
		Kind:     "broken pipe",
	}}))

	var env envelope
	require.NoError(t, reader.recv(&env))
	require.NotNil(t, env.Result)
	assert.Nil(t, env.Error)
	assert.Equal(t, "pkg.TestOne", env.Result.Test)

	env = envelope{}
	require.NoError(t, reader.recv(&env))
	require.NotNil(t, env.Error)
	assert.Nil(t, env.Result)
	assert.Equal(t, 2, env.Error.WorkerID)
}

func TestChannelRecvEOFWhenClosed(t *testing.T) {
	pr, pw := io.Pipe()
	ch := newChannel(pr, io.Discard)
	require.NoError(t, pw.Close())

	var cmd command
	assert.ErrorIs(t, ch.recv(&cmd), io.EOF)
}
