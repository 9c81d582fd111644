package hunit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/hunit-dev/hunit/flags"
)

// parseConfig builds a Config through the real flag set, the way the CLI
// entrypoint does.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.Root())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"hunit"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(t, "--statedir", filepath.Join(dir, "state"), "--logdir", filepath.Join(dir, "logs"))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, cfg.Jobs, 1)
	assert.False(t, cfg.Failfast)
	assert.True(t, cfg.Buffer)
	assert.True(t, cfg.StripFrames)
	assert.True(t, cfg.RunOnce)
	assert.True(t, filepath.IsAbs(cfg.LogDir))
	assert.True(t, filepath.IsAbs(cfg.StateDir))
	assert.DirExists(t, cfg.StateDir)
	assert.Equal(t, []string{"worker"}, cfg.WorkerArgs)
}

func TestNewConfigFlags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(t,
		"--statedir", filepath.Join(dir, "state"),
		"--logdir", filepath.Join(dir, "logs"),
		"--jobs", "4",
		"--failfast",
		"--no-buffer",
		"--pattern", "TestFoo.*",
		"--run-interval", "30m")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Jobs)
	assert.True(t, cfg.Failfast)
	assert.False(t, cfg.Buffer)
	assert.Equal(t, "TestFoo.*", cfg.Pattern)
	assert.Equal(t, 30*time.Minute, cfg.RunInterval)
	assert.False(t, cfg.RunOnce)
	assert.Equal(t, []string{"worker", "--no-buffer"}, cfg.WorkerArgs)
}

func TestNewConfigRejectsBadJobs(t *testing.T) {
	dir := t.TempDir()
	_, err := parseConfig(t, "--statedir", dir, "--jobs", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs must be at least 1")
}

func TestNewConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "hunit.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
jobs = 7
failfast = true
pattern = "FromFile"
run_interval = "15m"
`), 0644))

	// Explicit flags override the file; unset values come from it.
	cfg, err := parseConfig(t,
		"--statedir", filepath.Join(dir, "state"),
		"--logdir", filepath.Join(dir, "logs"),
		"--config", cfgFile,
		"--jobs", "2")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Jobs)
	assert.True(t, cfg.Failfast)
	assert.Equal(t, "FromFile", cfg.Pattern)
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
}

func TestNewConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "hunit.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("jobs = [not toml"), 0644))

	_, err := parseConfig(t, "--statedir", dir, "--config", cfgFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
