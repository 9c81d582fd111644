package printer

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// frameworkModule identifies this engine's own frames in formatted traces.
const frameworkModule = "github.com/hunit-dev/hunit"

// traceRenderer applies the two presentation rules for formatted traces:
// frames whose source file lies under the project top directory are
// emphasized, and (when stripping is enabled) frames belonging to the
// engine itself are elided together with the source-location line that
// follows each, matching the two-line-per-frame convention of Go traces.
type traceRenderer struct {
	topDir      string
	stripFrames bool
	color       bool
}

func (r traceRenderer) render(trace []string) []string {
	out := make([]string, 0, len(trace))
	skipNext := false
	for _, line := range trace {
		if skipNext {
			skipNext = false
			continue
		}
		if r.stripFrames && r.isFrameworkFrame(line) {
			skipNext = true
			continue
		}
		out = append(out, r.emphasize(line))
	}
	return out
}

// isFrameworkFrame reports whether the function line belongs to the engine.
// Source-location lines start with a tab and are never matched here; they
// are dropped via skipNext.
func (r traceRenderer) isFrameworkFrame(line string) bool {
	return !strings.HasPrefix(line, "\t") && strings.Contains(line, frameworkModule)
}

// emphasize highlights source-location lines under the project top
// directory.
func (r traceRenderer) emphasize(line string) string {
	if r.topDir == "" || !strings.HasPrefix(line, "\t") {
		return line
	}
	if strings.HasPrefix(strings.TrimPrefix(line, "\t"), r.topDir) {
		if r.color {
			return text.Bold.Sprint(line)
		}
	}
	return line
}
