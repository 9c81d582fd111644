package logging

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/hunit-dev/hunit/types"
)

// HTMLReportSink collects completed-test messages and renders a standalone
// report.html when the run completes, for browsing results away from the
// terminal.
type HTMLReportSink struct {
	runDir   string
	tmpl     *template.Template
	started  time.Time
	rows     []htmlRow
	counters types.StatusCounters
}

type htmlRow struct {
	Test    string
	Status  types.Status
	Elapsed time.Duration
	Message string
}

type htmlReport struct {
	RunID     string
	Generated time.Time
	Tests     int
	Counters  []htmlCounter
	Passed    bool
	Rows      []htmlRow
}

type htmlCounter struct {
	Status types.Status
	Count  int
}

// NewHTMLReportSink builds the sink writing into the run directory.
func NewHTMLReportSink(runDir string) (*HTMLReportSink, error) {
	tmpl, err := template.New("report").Funcs(reportFuncs()).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}
	return &HTMLReportSink{
		runDir:   runDir,
		tmpl:     tmpl,
		started:  time.Now(),
		counters: types.NewStatusCounters(),
	}, nil
}

// reportFuncs returns the template functions used by the report.
func reportFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"statusClass": func(s types.Status) string {
			if s.IsErroneous() {
				return "bad"
			}
			return string(s)
		},
	}
}

// Consume records one message's sub-outcomes as report rows.
func (s *HTMLReportSink) Consume(msg *types.TestResultMsg, runID string) error {
	for _, sub := range msg.Subs {
		row := htmlRow{
			Test:    msg.Test,
			Status:  sub.Status,
			Elapsed: msg.Elapsed,
		}
		if sub.Error != nil {
			row.Message = sub.Error.Kind + ": " + sub.Error.Message
		} else if sub.Reason != "" {
			row.Message = sub.Reason
		}
		s.rows = append(s.rows, row)
		s.counters.Inc(sub.Status)
	}
	return nil
}

// Complete renders report.html.
func (s *HTMLReportSink) Complete(runID string) error {
	report := htmlReport{
		RunID:     runID,
		Generated: time.Now(),
		Tests:     len(s.rows),
		Passed:    s.counters.WasSuccessful(),
		Rows:      s.rows,
	}
	for _, status := range types.AllStatuses {
		if n := s.counters.Get(status); n > 0 {
			report.Counters = append(report.Counters, htmlCounter{Status: status, Count: n})
		}
	}

	f, err := os.Create(filepath.Join(s.runDir, "report.html"))
	if err != nil {
		return fmt.Errorf("creating html report: %w", err)
	}
	defer f.Close()
	return s.tmpl.Execute(f, report)
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Test run {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.pass { color: #2a7; } .bad { color: #c33; } .skip { color: #36c; } .xfail { color: #097; }
.summary span { margin-right: 1em; }
</style>
</head>
<body>
<h1>Test run {{.RunID}}</h1>
<p class="summary">
<span>{{.Tests}} outcomes</span>
{{- range .Counters}}
<span class="{{statusClass .Status}}">{{.Status}}: {{.Count}}</span>
{{- end}}
<span>{{if .Passed}}PASSED{{else}}FAILED{{end}}</span>
</p>
<table>
<tr><th>Test</th><th>Status</th><th>Duration</th><th>Detail</th></tr>
{{- range .Rows}}
<tr><td>{{.Test}}</td><td class="{{statusClass .Status}}">{{.Status}}</td><td>{{formatDuration .Elapsed}}</td><td>{{.Message}}</td></tr>
{{- end}}
</table>
<p><small>Generated {{.Generated.Format "2006-01-02 15:04:05 MST"}}</small></p>
</body>
</html>
`
