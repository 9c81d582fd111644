package hunit

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunit-dev/hunit/faillist"
	"github.com/hunit-dev/hunit/logging"
	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/statusdb"
	"github.com/hunit-dev/hunit/types"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Jobs:        1,
		Buffer:      false,
		Quiet:       true,
		NoColor:     true,
		StripFrames: true,
		LogDir:      t.TempDir(),
		StateDir:    t.TempDir(),
		RunOnce:     true,
		Log:         log.Root(),
	}
}

// orderRecorder builds a registry whose tests record their execution order.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) register(reg *registry.Registry, id string, fail bool) {
	reg.MustRegister(id, func(c *registry.Case) {
		r.mu.Lock()
		r.order = append(r.order, id)
		r.mu.Unlock()
		if fail {
			c.Errorf("recorded failure")
		}
	})
}

func TestRunOnceReportsFailure(t *testing.T) {
	rec := &orderRecorder{}
	reg := registry.New(nil)
	rec.register(reg, "pkg.TestA", false)
	rec.register(reg, "pkg.TestB", true)
	rec.register(reg, "pkg.TestC", false)

	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, "test", reg, func(error) {})
	require.NoError(t, err)

	err = app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))

	last := app.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, 3, last.TestsRun)
	assert.Equal(t, 2, last.Counters.Get(types.StatusPass))
	assert.Equal(t, 1, last.Counters.Get(types.StatusFail))
	assert.False(t, last.Passed)
}

func TestRunOncePassesCleanly(t *testing.T) {
	reg := registry.New(nil)
	rec := &orderRecorder{}
	rec.register(reg, "pkg.TestA", false)

	cfg := testConfig(t)
	shutdownCalled := make(chan struct{}, 1)
	app, err := New(context.Background(), cfg, "test", reg, func(error) {
		shutdownCalled <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, app.Start(context.Background()))
	<-shutdownCalled
	assert.True(t, app.LastRun().Passed)
}

func TestRunPersistsStateAndFrontLoadsFailures(t *testing.T) {
	newReg := func(rec *orderRecorder) *registry.Registry {
		reg := registry.New(nil)
		rec.register(reg, "pkg.TestA", false)
		rec.register(reg, "pkg.TestB", true)
		rec.register(reg, "pkg.TestC", false)
		return reg
	}

	cfg := testConfig(t)

	rec1 := &orderRecorder{}
	app1, err := New(context.Background(), cfg, "test", newReg(rec1), func(error) {})
	require.NoError(t, err)
	_ = app1.Start(context.Background())
	assert.Equal(t, []string{"pkg.TestA", "pkg.TestB", "pkg.TestC"}, rec1.order)

	// The failure list now names TestB, and the status db holds a
	// snapshot of the run.
	failed, err := faillist.Load(filepath.Join(cfg.StateDir, faillist.DefaultFilename))
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.TestB"}, failed)

	snap, err := statusdb.Load(filepath.Join(cfg.StateDir, statusdb.DefaultFilename))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.TestsRun)
	assert.Equal(t, app1.LastRun().RunID, snap.RunID)

	// The next run over the same state front-loads the failure.
	rec2 := &orderRecorder{}
	app2, err := New(context.Background(), cfg, "test", newReg(rec2), func(error) {})
	require.NoError(t, err)
	_ = app2.Start(context.Background())
	assert.Equal(t, []string{"pkg.TestB", "pkg.TestA", "pkg.TestC"}, rec2.order)
}

func TestRunWritesRunDirectory(t *testing.T) {
	reg := registry.New(nil)
	rec := &orderRecorder{}
	rec.register(reg, "pkg.TestA", false)

	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, "test", reg, func(error) {})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	runDir := filepath.Join(cfg.LogDir, logging.RunDirectoryPrefix+app.LastRun().RunID)
	assert.FileExists(t, filepath.Join(runDir, "run.log"))
	assert.FileExists(t, filepath.Join(runDir, "results.jsonl"))
	assert.FileExists(t, filepath.Join(runDir, "summary.log"))
	assert.FileExists(t, filepath.Join(runDir, "report.html"))
}

func TestSelectTestsPattern(t *testing.T) {
	reg := registry.New(nil)
	reg.MustRegister("alpha.TestOne", func(c *registry.Case) {})
	reg.MustRegister("alpha.TestTwo", func(c *registry.Case) {})
	reg.MustRegister("beta.TestOne", func(c *registry.Case) {})

	cfg := testConfig(t)
	cfg.Pattern = `^alpha\.`
	app, err := New(context.Background(), cfg, "test", reg, func(error) {})
	require.NoError(t, err)

	tests, err := app.selectTests()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.TestOne", "alpha.TestTwo"}, tests)
}

func TestSelectTestsInvalidPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pattern = "("
	app, err := New(context.Background(), cfg, "test", registry.New(nil), func(error) {})
	require.NoError(t, err)

	_, err = app.selectTests()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid test pattern")
}

func TestNoMatchingTestsIsSuccess(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pattern = "nothing-matches"
	reg := registry.New(nil)
	reg.MustRegister("pkg.TestA", func(c *registry.Case) {})

	app, err := New(context.Background(), cfg, "test", reg, func(error) {})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	assert.True(t, app.LastRun().Passed)
	assert.Equal(t, 0, app.LastRun().TestsRun)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", nil, func(error) {})
	require.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	reg := registry.New(nil)
	reg.MustRegister("pkg.TestA", func(c *registry.Case) {})

	app, err := New(context.Background(), cfg, "test", reg, func(error) {})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	require.NoError(t, app.Stop(context.Background()))
	require.NoError(t, app.Stop(context.Background()))
	assert.True(t, app.Stopped())
}
