// Package printer renders progress lines, error blocks, captured io and run
// summaries. Rendering is duplicated to a live, overwritable display and to
// a durable log sink owned by the logging package.
package printer

import (
	"io"
	"os"

	"github.com/acarl005/stripansi"
	"golang.org/x/term"
)

// LinePrinter provides robust line overwriting on a terminal: progress is
// reported by rewriting one line in place, falling back to plain
// newline-terminated output when the sink is not a terminal. It never
// rewrites a line identical to the previous one, and it pads over leftovers
// when a long line is replaced by a shorter one.
type LinePrinter struct {
	out    io.Writer
	mirror io.Writer // durable sink, ANSI stripped; may be nil
	isTTY  bool
	width  func() int
	quiet  bool

	prevLine string
	prevLen  int
}

// LinePrinterConfig configures a LinePrinter.
type LinePrinterConfig struct {
	Out    io.Writer
	Mirror io.Writer
	Quiet  bool
	// ForceTTY overrides terminal detection, for tests.
	ForceTTY *bool
}

// NewLinePrinter builds a printer writing to cfg.Out (default os.Stdout).
func NewLinePrinter(cfg LinePrinterConfig) *LinePrinter {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	lp := &LinePrinter{
		out:    out,
		mirror: cfg.Mirror,
		quiet:  cfg.Quiet,
	}
	if cfg.ForceTTY != nil {
		lp.isTTY = *cfg.ForceTTY
	} else if f, ok := out.(*os.File); ok {
		lp.isTTY = term.IsTerminal(int(f.Fd()))
	}
	lp.width = func() int {
		if f, ok := out.(*os.File); ok && lp.isTTY {
			if w, _, err := term.GetSize(int(f.Fd())); err == nil {
				return w
			}
		}
		return 0
	}
	return lp
}

// IsTTY reports whether the live sink is a terminal.
func (lp *LinePrinter) IsTTY() bool {
	return lp.isTTY
}

func (lp *LinePrinter) write(s string) {
	_, _ = io.WriteString(lp.out, s)
}

func (lp *LinePrinter) toMirror(line string) {
	if lp.mirror == nil {
		return
	}
	_, _ = io.WriteString(lp.mirror, stripansi.Strip(line)+"\n")
}

// Overwrite replaces the previous line with the given one. On a terminal
// the carriage return rewrites in place; otherwise each line is printed on
// its own row.
func (lp *LinePrinter) Overwrite(line string) {
	if line == lp.prevLine {
		return
	}
	lp.toMirror(line)

	// Quiet mode drops transient progress from the live display; the
	// durable mirror still records it.
	if lp.quiet {
		lp.prevLine = line
		lp.prevLen = 0
		return
	}

	if !lp.isTTY {
		lp.write(line + "\n")
		lp.prevLine = line
		return
	}

	visual := stripansi.Strip(line)
	if w := lp.width(); w > 0 {
		// Width-aware truncation on rune boundaries; ANSI sequences are
		// stripped first so color escapes cannot be cut in half.
		if runes := []rune(visual); len(runes) > w {
			visual = string(runes[:w])
			line = visual
		}
	}
	lp.write("\r" + line)
	if pad := lp.prevLen - len(visual); pad > 0 {
		lp.write(spaces(pad))
	}
	lp.prevLine = line
	lp.prevLen = len(visual)
}

// OverwriteNL overwrites the previous line and commits it with a newline.
// Committed lines print even in quiet mode.
func (lp *LinePrinter) OverwriteNL(line string) {
	if lp.quiet {
		if line != lp.prevLine {
			lp.toMirror(line)
		}
		lp.write(line + "\n")
		lp.prevLine = ""
		lp.prevLen = 0
		return
	}
	lp.Overwrite(line)
	lp.NewLine()
}

// WriteNL prints a full line below the current one.
func (lp *LinePrinter) WriteNL(line string) {
	lp.toMirror(line)
	lp.write(line + "\n")
	lp.prevLine = ""
	lp.prevLen = 0
}

// NewLine commits the current overwritable line.
func (lp *LinePrinter) NewLine() {
	if lp.isTTY && !lp.quiet && lp.prevLine != "" {
		lp.write("\n")
	}
	lp.prevLine = ""
	lp.prevLen = 0
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
