package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	hunit "github.com/hunit-dev/hunit"
	"github.com/hunit-dev/hunit/flags"
	"github.com/hunit-dev/hunit/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "hunit"
	app.Usage = "Parallel test-execution engine"
	app.Description = "hunit runs registered tests across a pool of worker processes"
	app.Flags = flags.Flags
	app.Action = run
	app.Commands = []*cli.Command{
		WorkerCommand(),
		ListCommand(),
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if hunit.IsRuntimeError(err) {
				// For runtime errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if hunit.IsTestFailureError(err) {
				// For test failures, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}
	return app
}

func run(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	cfg, err := hunit.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return hunit.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config",
		"jobs", cfg.Jobs, "failfast", cfg.Failfast, "pattern", cfg.Pattern,
		"logdir", cfg.LogDir, "statedir", cfg.StateDir)

	app, err := hunit.New(ctx.Context, cfg, Version, nil, func(error) {})
	if err != nil {
		return hunit.NewRuntimeError(fmt.Errorf("failed to create engine: %w", err))
	}

	if cfg.RunOnce {
		return app.Start(ctx.Context)
	}

	// Watch mode is a long-lived service: expose healthz and metrics for
	// the duration.
	svc := service.New()
	svc.Start(ctx.Context)
	defer svc.Shutdown()

	if err := app.Start(ctx.Context); err != nil {
		return err
	}
	<-ctx.Context.Done()

	if err := app.Stop(context.Background()); err != nil {
		logger.Error("Error stopping engine", "err", err)
	}
	return app.WaitForShutdown(context.Background())
}

func setupLogger(ctx *cli.Context) log.Logger {
	color := term.IsTerminal(int(os.Stderr.Fd()))
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, levelFromString(ctx.String(flags.LogLevel.Name)), color)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}
