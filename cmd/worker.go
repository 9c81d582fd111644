package main

import (
	"github.com/urfave/cli/v2"

	hunit "github.com/hunit-dev/hunit"
	"github.com/hunit-dev/hunit/flags"
	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/runner"
)

// WorkerCommand defines the hidden "worker" command the scheduler forks.
// It speaks the worker protocol on inherited pipes and is never invoked by
// hand.
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Hidden: true,
		Usage:  "Run as a test worker child process (internal)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "worker-id",
				Required: true,
				Usage:    "Identifier assigned by the scheduler",
			},
			flags.NoBuffer,
			flags.LogLevel,
		},
		Action: workerAction,
	}
}

func workerAction(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	r, w := runner.WorkerFiles()
	defer r.Close()
	defer w.Close()

	err := runner.RunWorker(ctx.Context, ctx.Int("worker-id"), registry.Global(),
		r, w, !ctx.Bool(flags.NoBuffer.Name), logger)
	if err != nil {
		return hunit.NewRuntimeError(err)
	}
	return nil
}
