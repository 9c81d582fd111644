package printer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hunit-dev/hunit/types"
)

// statusColors maps each countable status to its display color.
var statusColors = map[types.Status]text.Colors{
	types.StatusPass:  {text.FgGreen},
	types.StatusFail:  {text.FgRed},
	types.StatusError: {text.FgMagenta},
	types.StatusSkip:  {text.FgBlue},
	types.StatusXFail: {text.FgCyan},
	types.StatusXPass: {text.FgYellow},
}

// statusLabels maps statuses to their rendered labels. The expected-failure
// pair renders with a tilde to read as "inverted" outcomes.
var statusLabels = map[types.Status]string{
	types.StatusPass:  "PASS",
	types.StatusFail:  "FAIL",
	types.StatusError: "ERROR",
	types.StatusSkip:  "SKIP",
	types.StatusXFail: "~FAIL",
	types.StatusXPass: "~PASS",
}

// Config configures a ResultPrinter.
type Config struct {
	Live    LinePrinterConfig
	NoColor bool
	// TopDir is the project top-level directory; trace lines under it are
	// emphasized.
	TopDir string
	// StripFrames elides the engine's own frames from rendered traces.
	StripFrames bool
}

// ResultPrinter renders structured outcome events. It implements
// result.Printer. All methods are driven from one goroutine (the runner or
// scheduler loop).
type ResultPrinter struct {
	lp      *LinePrinter
	color   bool
	traces  traceRenderer
	hbarLen int
}

// New builds a ResultPrinter. Color is enabled when the live sink is a
// terminal, unless disabled explicitly.
func New(cfg Config) *ResultPrinter {
	lp := NewLinePrinter(cfg.Live)
	color := !cfg.NoColor && lp.IsTTY()
	return &ResultPrinter{
		lp:    lp,
		color: color,
		traces: traceRenderer{
			topDir:      cfg.TopDir,
			stripFrames: cfg.StripFrames,
			color:       color,
		},
	}
}

// Live exposes the underlying line printer for collection-phase reporting.
func (p *ResultPrinter) Live() *LinePrinter {
	return p.lp
}

func (p *ResultPrinter) colorize(c text.Colors, s string) string {
	if !p.color {
		return s
	}
	return c.Sprint(s)
}

func (p *ResultPrinter) statusText(status types.Status, aligned bool) string {
	label := statusLabels[status]
	if label == "" {
		label = strings.ToUpper(string(status))
	}
	if aligned {
		label = center(label, 5)
	}
	return p.colorize(statusColors[status], label)
}

// PrintMessage renders one progress line, then an error block or a
// skip-reason line when the outcome carries one.
func (p *ResultPrinter) PrintMessage(test string, status types.Status, counters types.StatusCounters,
	progress float64, mean, last time.Duration,
	errInfo *types.ErrorInfo, reason string, params map[string]string) {

	tallies := make([]string, 0, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		tallies = append(tallies, p.colorize(statusColors[s], fmt.Sprintf("%d", counters.Get(s))))
	}

	name := test + formatParams(params)
	msg := fmt.Sprintf("[%3.0f%%|%s|%s] %s: %s (%s)",
		progress*100,
		fmtDuration(mean),
		strings.Join(tallies, "|"),
		p.statusText(status, true),
		name,
		fmtDuration(last))
	p.lp.Overwrite(msg)

	if errInfo != nil {
		p.printError(name, status, errInfo)
	}
	if reason != "" {
		p.lp.OverwriteNL(fmt.Sprintf("%s: %s: %s", p.statusText(status, false), name, reason))
	}
}

// printError renders the full error block: ruler, colored header, ruler,
// trace lines, then the error kind and message.
func (p *ResultPrinter) printError(name string, status types.Status, errInfo *types.ErrorInfo) {
	header := fmt.Sprintf("%s: %s", p.statusText(status, false), name)
	p.hbarLen = len(stripansi.Strip(header))
	hbar := strings.Repeat("-", p.hbarLen)

	p.lp.OverwriteNL(hbar)
	p.lp.OverwriteNL(header)
	p.lp.WriteNL(hbar)
	for _, line := range p.traces.render(errInfo.Trace) {
		p.lp.WriteNL(line)
	}
	p.lp.WriteNL(fmt.Sprintf("%s: %s", errInfo.Kind, errInfo.Message))
}

// PrintIOs renders captured output framed under the same ruler used for
// error blocks, only when there is something to show.
func (p *ResultPrinter) PrintIOs(test, stdout, stderr string) {
	if stdout == "" && stderr == "" {
		return
	}
	if p.hbarLen == 0 {
		p.hbarLen = len(test) + 7
	}
	p.printIO("stdout", stdout)
	p.printIO("stderr", stderr)
	p.lp.WriteNL(strings.Repeat("-", p.hbarLen))
}

func (p *ResultPrinter) printIO(channel, output string) {
	if output == "" {
		return
	}
	p.lp.WriteNL(centerFill(" "+strings.ToUpper(channel)+" ", p.hbarLen, "-"))
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		p.lp.WriteNL(line)
	}
}

// PrintSummary renders the aggregate line plus, when any non-pass count
// exists, a per-status breakdown with deltas versus the previous run.
func (p *ResultPrinter) PrintSummary(testsRun int, prev, counters types.StatusCounters,
	totalTestTime, mean, wall time.Duration) {

	runColor := statusColors[types.StatusPass]
	if !counters.WasSuccessful() {
		runColor = statusColors[types.StatusFail]
	}

	msg := fmt.Sprintf("%s %d tests in %s (avg: %s)",
		p.colorize(runColor, "Run"), testsRun,
		fmtDuration(totalTestTime), fmtDuration(mean))
	if wall > 0 {
		msg += fmt.Sprintf(" [wall %s, speedup %.2fx]",
			fmtDuration(wall), float64(totalTestTime)/float64(wall))
	}
	p.lp.OverwriteNL(msg)

	if counters.Total() == counters.Get(types.StatusPass) {
		return
	}
	p.printBreakdown(prev, counters)
}

// printBreakdown renders one row per status with a non-zero count or a
// non-zero delta against the previous run.
func (p *ResultPrinter) printBreakdown(prev, counters types.StatusCounters) {
	delta := counters.Delta(prev)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"status", "count", "delta"})
	for _, s := range types.AllStatuses {
		if counters.Get(s) == 0 && delta[s] == 0 {
			continue
		}
		tw.AppendRow(table.Row{
			p.statusText(s, false),
			counters.Get(s),
			formatDelta(delta[s]),
		})
	}
	for _, line := range strings.Split(tw.Render(), "\n") {
		p.lp.WriteNL(line)
	}
}

// PrintWorkerError renders a worker machinery fault distinctly from test
// outcomes: every line carries the worker tag so interleaved output stays
// attributable.
func (p *ResultPrinter) PrintWorkerError(workerID int, kind string, trace []string) {
	tag := fmt.Sprintf("[worker%d]", workerID)
	header := fmt.Sprintf("%s %s: %s",
		tag, p.colorize(statusColors[types.StatusError], "WORKER ERROR"), kind)
	p.hbarLen = len(stripansi.Strip(header))
	hbar := strings.Repeat("=", p.hbarLen)

	p.lp.OverwriteNL(hbar)
	p.lp.OverwriteNL(header)
	p.lp.WriteNL(hbar)
	for _, line := range trace {
		p.lp.WriteNL(tag + " " + line)
	}
}

// NewLine commits the current overwritable line, for end-of-run cleanup.
func (p *ResultPrinter) NewLine() {
	p.lp.NewLine()
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return " [" + strings.Join(pairs, " ") + "]"
}

func formatDelta(d int) string {
	if d > 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}

// fmtDuration renders a duration at a resolution proportionate to its size.
func fmtDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Microsecond).String()
	}
}

func center(s string, width int) string {
	return centerFill(s, width, " ")
}

func centerFill(s string, width int, fill string) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(fill, left) + s + strings.Repeat(fill, right)
}
