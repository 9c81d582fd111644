// Package statusdb persists a snapshot of each run's outcome tallies so
// the next run can display per-status deltas. Snapshots are keyed by a
// fingerprint of the test selection: deltas are only meaningful against a
// run of the same tests, so a changed selection invalidates the baseline.
package statusdb

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/hunit-dev/hunit/types"
)

// DefaultFilename is the snapshot file name inside the state directory.
const DefaultFilename = "status.yaml"

// Snapshot is one persisted run outcome.
type Snapshot struct {
	Fingerprint string               `yaml:"fingerprint"`
	RunID       string               `yaml:"run_id"`
	Timestamp   time.Time            `yaml:"timestamp"`
	TestsRun    int                  `yaml:"tests_run"`
	Counters    types.StatusCounters `yaml:"counters"`
}

// Fingerprint hashes the test selection: the identifiers (order
// independent), the module under test and the selection pattern. Two runs
// with equal fingerprints executed the same tests.
func Fingerprint(ids []string, modulePath, pattern string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(modulePath))
	h.Write([]byte{0})
	h.Write([]byte(pattern))
	h.Write([]byte{0})
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ModulePath reads the module path from the go.mod in dir, walking up to
// the filesystem root. It returns "" without error when no go.mod exists;
// the fingerprint then keys on the test identifiers alone.
func ModulePath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolving module directory")
	}
	for {
		data, err := os.ReadFile(filepath.Join(abs, "go.mod"))
		if err == nil {
			path := modfile.ModulePath(data)
			if path == "" {
				return "", errors.Errorf("no module path in %s", filepath.Join(abs, "go.mod"))
			}
			return path, nil
		}
		if !os.IsNotExist(err) {
			return "", errors.Wrap(err, "reading go.mod")
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

// Load reads a snapshot. A missing file means no baseline and is not an
// error.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading status db %s", path)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "parsing status db %s", path)
	}
	return &snap, nil
}

// Save writes the snapshot atomically via a temp file rename.
func Save(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshaling status db")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".statusdb-*")
	if err != nil {
		return errors.Wrap(err, "creating status db temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing status db")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing status db temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replacing status db %s", path)
	}
	return nil
}

// Baseline returns the previous run's counters when the stored snapshot
// matches the given fingerprint, nil otherwise.
func Baseline(snap *Snapshot, fingerprint string) types.StatusCounters {
	if snap == nil || snap.Fingerprint != fingerprint {
		return nil
	}
	return snap.Counters
}
