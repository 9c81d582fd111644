package hunit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/hunit-dev/hunit/flags"
)

// Config holds the application configuration
type Config struct {
	Jobs        int           // Number of worker processes; 1 runs tests in-process
	Failfast    bool          // Stop starting new tests after the first failure
	Buffer      bool          // Capture test stdio; disabled under --no-buffer
	Pattern     string        // Regular expression selecting tests to run
	Quiet       bool          // Suppress transient progress lines
	NoColor     bool          // Disable colored output
	StripFrames bool          // Elide engine frames from rendered tracebacks
	LogDir      string        // Directory receiving per-run log directories
	StateDir    string        // Directory holding the failure list and status db
	RunInterval time.Duration // Interval between test runs
	RunOnce     bool          // Indicates if the service should exit after one run
	WorkerArgs  []string      // Argument vector re-invoking this binary as a worker
	Log         log.Logger
}

// fileConfig is the subset of Config settable from a TOML file. Flags given
// on the command line override file values.
type fileConfig struct {
	Jobs        *int    `toml:"jobs"`
	Failfast    *bool   `toml:"failfast"`
	NoBuffer    *bool   `toml:"no_buffer"`
	Pattern     *string `toml:"pattern"`
	Quiet       *bool   `toml:"quiet"`
	NoColor     *bool   `toml:"no_color"`
	StripFrames *bool   `toml:"strip_frames"`
	LogDir      *string `toml:"logdir"`
	StateDir    *string `toml:"statedir"`
	RunInterval *string `toml:"run_interval"`
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	cfg := &Config{
		Jobs:        ctx.Int(flags.Jobs.Name),
		Failfast:    ctx.Bool(flags.Failfast.Name),
		Buffer:      !ctx.Bool(flags.NoBuffer.Name),
		Pattern:     ctx.String(flags.Pattern.Name),
		Quiet:       ctx.Bool(flags.Quiet.Name),
		NoColor:     ctx.Bool(flags.NoColor.Name),
		StripFrames: ctx.Bool(flags.StripFrames.Name),
		LogDir:      ctx.String(flags.LogDir.Name),
		StateDir:    ctx.String(flags.StateDir.Name),
		RunInterval: ctx.Duration(flags.RunInterval.Name),
		Log:         logger,
	}

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		if err := cfg.applyFile(ctx, path); err != nil {
			return nil, err
		}
	}

	if cfg.Jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	cfg.RunOnce = cfg.RunInterval == 0

	var err error
	cfg.LogDir, err = filepath.Abs(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}
	cfg.StateDir, err = filepath.Abs(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for state directory: %w", err)
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory '%s': %w", cfg.StateDir, err)
	}

	cfg.WorkerArgs = workerArgs(cfg)
	return cfg, nil
}

// applyFile loads the TOML file and fills in every setting the command line
// did not set explicitly.
func (c *Config) applyFile(ctx *cli.Context, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	if fc.Jobs != nil && !ctx.IsSet(flags.Jobs.Name) {
		c.Jobs = *fc.Jobs
	}
	if fc.Failfast != nil && !ctx.IsSet(flags.Failfast.Name) {
		c.Failfast = *fc.Failfast
	}
	if fc.NoBuffer != nil && !ctx.IsSet(flags.NoBuffer.Name) {
		c.Buffer = !*fc.NoBuffer
	}
	if fc.Pattern != nil && !ctx.IsSet(flags.Pattern.Name) {
		c.Pattern = *fc.Pattern
	}
	if fc.Quiet != nil && !ctx.IsSet(flags.Quiet.Name) {
		c.Quiet = *fc.Quiet
	}
	if fc.NoColor != nil && !ctx.IsSet(flags.NoColor.Name) {
		c.NoColor = *fc.NoColor
	}
	if fc.StripFrames != nil && !ctx.IsSet(flags.StripFrames.Name) {
		c.StripFrames = *fc.StripFrames
	}
	if fc.LogDir != nil && !ctx.IsSet(flags.LogDir.Name) {
		c.LogDir = *fc.LogDir
	}
	if fc.StateDir != nil && !ctx.IsSet(flags.StateDir.Name) {
		c.StateDir = *fc.StateDir
	}
	if fc.RunInterval != nil && !ctx.IsSet(flags.RunInterval.Name) {
		d, err := time.ParseDuration(*fc.RunInterval)
		if err != nil {
			return fmt.Errorf("invalid run_interval in config file: %w", err)
		}
		c.RunInterval = d
	}
	return nil
}

// workerArgs builds the argument vector used to fork this binary as a
// worker. The worker needs only the settings that affect test execution.
func workerArgs(cfg *Config) []string {
	args := []string{"worker"}
	if !cfg.Buffer {
		args = append(args, "--no-buffer")
	}
	return args
}
