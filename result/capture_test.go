package result

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRedirectsGlobalStreams(t *testing.T) {
	cap := NewStdioCapture(true)
	origOut, origErr := os.Stdout, os.Stderr

	h, err := cap.Capture()
	require.NoError(t, err)

	fmt.Println("captured line")
	fmt.Fprintln(os.Stderr, "captured error")

	stdout, stderr := h.Release()
	assert.Equal(t, origOut, os.Stdout)
	assert.Equal(t, origErr, os.Stderr)
	assert.Equal(t, "captured line\n", stdout)
	assert.Equal(t, "captured error\n", stderr)
}

func TestCaptureHandleWriters(t *testing.T) {
	cap := NewStdioCapture(true)
	h, err := cap.Capture()
	require.NoError(t, err)

	fmt.Fprint(h.Stdout(), "via handle")
	stdout, stderr := h.Release()
	assert.Equal(t, "via handle", stdout)
	assert.Empty(t, stderr)
}

func TestCapturePassthroughWhenDisabled(t *testing.T) {
	cap := NewStdioCapture(false)
	origOut := os.Stdout

	h, err := cap.Capture()
	require.NoError(t, err)
	assert.Equal(t, origOut, os.Stdout, "streams must not be touched")

	stdout, stderr := h.Release()
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestCaptureReleaseIsIdempotent(t *testing.T) {
	cap := NewStdioCapture(true)
	h, err := cap.Capture()
	require.NoError(t, err)

	fmt.Print("once")
	first, _ := h.Release()
	second, _ := h.Release()
	assert.Equal(t, "once", first)
	assert.Equal(t, first, second)
}

func TestTailBufferKeepsMostRecentBytes(t *testing.T) {
	b := newTailBuffer(8)
	_, err := b.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "23456789", b.String())
	assert.True(t, b.Truncated())

	b = newTailBuffer(64)
	_, err = b.Write([]byte(strings.Repeat("x", 10)))
	require.NoError(t, err)
	assert.False(t, b.Truncated())
	assert.Len(t, b.String(), 10)
}
