package printer

import (
	"bytes"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func newLP(t *testing.T, tty bool) (*LinePrinter, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, mirror bytes.Buffer
	lp := NewLinePrinter(LinePrinterConfig{Out: &out, Mirror: &mirror, ForceTTY: &tty})
	return lp, &out, &mirror
}

func TestOverwriteNonTTYPrintsEachLine(t *testing.T) {
	lp, out, _ := newLP(t, false)
	lp.Overwrite("first")
	lp.Overwrite("second")
	assert.Equal(t, "first\nsecond\n", out.String())
}

func TestOverwriteTTYUsesCarriageReturn(t *testing.T) {
	lp, out, _ := newLP(t, true)
	lp.Overwrite("first")
	lp.Overwrite("two")
	s := out.String()
	assert.Contains(t, s, "\rfirst")
	assert.Contains(t, s, "\rtwo")
	// Leftover from the longer previous line is padded over.
	assert.Contains(t, s, "\rtwo  ")
}

func TestOverwriteSkipsIdenticalLine(t *testing.T) {
	lp, out, _ := newLP(t, false)
	lp.Overwrite("same")
	lp.Overwrite("same")
	assert.Equal(t, "same\n", out.String())
}

func TestNewLineCommitsOnlyOnce(t *testing.T) {
	lp, out, _ := newLP(t, true)
	lp.Overwrite("line")
	lp.NewLine()
	lp.NewLine()
	assert.Equal(t, "\rline\n", out.String())
}

func TestMirrorReceivesStrippedLines(t *testing.T) {
	lp, _, mirror := newLP(t, true)
	lp.Overwrite("\x1b[32mgreen\x1b[0m")
	lp.WriteNL("plain")
	assert.Equal(t, "green\nplain\n", mirror.String())
}

func TestOverwriteTruncatesOnRuneBoundary(t *testing.T) {
	lp, out, _ := newLP(t, true)
	lp.width = func() int { return 4 }

	lp.Overwrite("héllo wörld")
	s := out.String()
	assert.True(t, utf8.ValidString(s))
	assert.Contains(t, s, "\rhéll")
}

func TestQuietSuppressesProgressOnly(t *testing.T) {
	var out, mirror bytes.Buffer
	tty := false
	lp := NewLinePrinter(LinePrinterConfig{Out: &out, Mirror: &mirror, Quiet: true, ForceTTY: &tty})

	// Transient progress is dropped from the live display.
	lp.Overwrite("progress 10%")
	lp.Overwrite("progress 20%")
	assert.Empty(t, out.String())

	// Committed lines still print.
	lp.OverwriteNL("FAIL: pkg.TestX")
	lp.WriteNL("detail")
	assert.Equal(t, "FAIL: pkg.TestX\ndetail\n", out.String())

	// The durable mirror records everything either way.
	assert.Equal(t, "progress 10%\nprogress 20%\nFAIL: pkg.TestX\ndetail\n", mirror.String())
}
