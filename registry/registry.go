// Package registry maps test identifiers to runnable test functions.
//
// Discovery is an external concern: the embedding binary registers its tests
// (typically from init functions) and hands the engine an ordered,
// de-duplicated list of identifiers. The registry only resolves identifiers
// back to code when a runner or worker needs to execute one.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// TestFunc is one runnable test unit. It reports outcomes through the Case
// handle; a plain return with no recorded failure is a pass.
type TestFunc func(c *Case)

// Registry holds registered tests keyed by their stable identifier
// (package.module.Class.method style strings).
type Registry struct {
	mu    sync.RWMutex
	tests map[string]TestFunc
	order []string
	log   log.Logger
}

// New creates an empty registry.
func New(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.Root()
	}
	return &Registry{
		tests: make(map[string]TestFunc),
		log:   logger.New("component", "registry"),
	}
}

// Register adds a test under the given identifier. Registering the same
// identifier twice is a programming error in the embedding binary.
func (r *Registry) Register(id string, fn TestFunc) error {
	if id == "" {
		return fmt.Errorf("test identifier cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("test %q: function cannot be nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tests[id]; exists {
		return fmt.Errorf("test %q already registered", id)
	}
	r.tests[id] = fn
	r.order = append(r.order, id)
	return nil
}

// MustRegister is Register that panics on error, for init-time registration.
func (r *Registry) MustRegister(id string, fn TestFunc) {
	if err := r.Register(id, fn); err != nil {
		panic(err)
	}
}

// Lookup resolves an identifier to its test function.
func (r *Registry) Lookup(id string) (TestFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tests[id]
	if !ok {
		return nil, fmt.Errorf("unknown test %q", id)
	}
	return fn, nil
}

// Identifiers returns all registered identifiers in registration order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// SortedIdentifiers returns all registered identifiers sorted
// lexicographically, for stable fingerprinting.
func (r *Registry) SortedIdentifiers() []string {
	ids := r.Identifiers()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tests)
}

// global is the process-wide registry used by binaries that register tests
// from init functions.
var global = New(log.Root())

// Global returns the process-wide registry.
func Global() *Registry {
	return global
}

// Register adds a test to the process-wide registry.
func Register(id string, fn TestFunc) error {
	return global.Register(id, fn)
}

// MustRegister adds a test to the process-wide registry, panicking on error.
func MustRegister(id string, fn TestFunc) {
	global.MustRegister(id, fn)
}
