package flags

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "HUNIT"

// prefixEnvVars prefixes every environment variable name with the engine's
// namespace.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Jobs = &cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Value:   runtime.NumCPU(),
		EnvVars: prefixEnvVars("JOBS"),
		Usage:   "Number of worker processes. 1 runs tests in-process.",
	}
	Failfast = &cli.BoolFlag{
		Name:    "failfast",
		Aliases: []string{"x"},
		Value:   false,
		EnvVars: prefixEnvVars("FAILFAST"),
		Usage:   "Stop starting new tests after the first failure",
	}
	NoBuffer = &cli.BoolFlag{
		Name:    "no-buffer",
		Value:   false,
		EnvVars: prefixEnvVars("NO_BUFFER"),
		Usage:   "Disable stdio capture; test output goes straight to the terminal (for debuggers)",
	}
	Pattern = &cli.StringFlag{
		Name:    "pattern",
		Aliases: []string{"k"},
		Value:   "",
		EnvVars: prefixEnvVars("PATTERN"),
		Usage:   "Only run tests whose identifier matches this regular expression",
	}
	Quiet = &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Value:   false,
		EnvVars: prefixEnvVars("QUIET"),
		Usage:   "Suppress transient progress lines; only committed lines are printed",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		Value:   false,
		EnvVars: prefixEnvVars("NO_COLOR"),
		Usage:   "Disable colored output",
	}
	StripFrames = &cli.BoolFlag{
		Name:    "strip-frames",
		Value:   true,
		EnvVars: prefixEnvVars("STRIP_FRAMES"),
		Usage:   "Elide the engine's own frames from rendered tracebacks",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory receiving per-run log directories",
	}
	StateDir = &cli.StringFlag{
		Name:    "statedir",
		Value:   ".hunit",
		EnvVars: prefixEnvVars("STATEDIR"),
		Usage:   "Directory holding the failure list and the status db",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVars("CONFIG"),
		Usage:   "Path to a TOML config file; flags override its values",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Engine log level (trace, debug, info, warn, error, crit)",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Jobs,
	Failfast,
	NoBuffer,
	Pattern,
	Quiet,
	NoColor,
	StripFrames,
	LogDir,
	StateDir,
	RunInterval,
	ConfigFile,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
