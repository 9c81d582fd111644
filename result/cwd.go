package result

import (
	"errors"
	"fmt"
	"os"
)

// ErrCWDChanged signals that a test changed the process working directory
// and did not restore it. Subsequent results cannot be trusted, so this is
// surfaced as a fatal run error rather than a test outcome.
var ErrCWDChanged = errors.New("working directory changed during test")

// CWDGuard snapshots the working directory before a test and verifies it
// afterwards.
type CWDGuard struct {
	before string
}

// NewCWDGuard returns a guard with no snapshot taken.
func NewCWDGuard() *CWDGuard {
	return &CWDGuard{}
}

// Snapshot records the current working directory.
func (g *CWDGuard) Snapshot() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	g.before = wd
	return nil
}

// Check compares the current working directory against the snapshot.
func (g *CWDGuard) Check() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if wd != g.before {
		return fmt.Errorf("%w: was %q, now %q", ErrCWDChanged, g.before, wd)
	}
	return nil
}
