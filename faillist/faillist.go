// Package faillist persists the set of tests that failed in previous runs,
// so subsequent runs surface likely failures first and failfast triggers as
// early as possible.
package faillist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultFilename is the failure-list file name inside the state directory.
const DefaultFilename = "failed.lst"

// Load reads the failure list: one test identifier per line, blank lines
// ignored. A missing file is an empty list, not an error.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading failure list %s", path)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

// Save writes the failure list atomically: a temp file in the same
// directory renamed over the target, so a crashed run never leaves a
// truncated list. An empty list removes the file.
func Save(path string, ids []string) error {
	if len(ids) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing failure list %s", path)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".faillist-*")
	if err != nil {
		return errors.Wrap(err, "creating failure list temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strings.Join(ids, "\n") + "\n"); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing failure list")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing failure list temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replacing failure list %s", path)
	}
	return nil
}

// Reorder moves tests present in the failure list to the front of the run
// order, in their failure-list order, keeping the rest in their original
// order. Failure-list entries no longer in the test set are dropped.
func Reorder(tests, failed []string) []string {
	if len(failed) == 0 || len(tests) == 0 {
		return tests
	}

	pending := make(map[string]bool, len(tests))
	for _, id := range tests {
		pending[id] = true
	}

	ordered := make([]string, 0, len(tests))
	for _, id := range failed {
		if pending[id] {
			ordered = append(ordered, id)
			pending[id] = false
		}
	}
	for _, id := range tests {
		if pending[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// Update computes the next failure list from the previous one and a run's
// outcome sets: tests that failed this run are added, tests that passed
// are cleared, and stale entries untouched by this run carry over. New
// failures are appended in sorted order for a stable file.
func Update(prev []string, errSet, succSet map[string]struct{}) []string {
	seen := make(map[string]bool, len(prev))
	var next []string
	for _, id := range prev {
		if _, passed := succSet[id]; passed {
			continue
		}
		if !seen[id] {
			seen[id] = true
			next = append(next, id)
		}
	}

	fresh := make([]string, 0, len(errSet))
	for id := range errSet {
		if !seen[id] {
			fresh = append(fresh, id)
		}
	}
	sort.Strings(fresh)
	return append(next, fresh...)
}
