package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// NewExecSpawner returns a SpawnFunc forking the engine's own binary with
// the given worker arguments. The protocol streams are dedicated inherited
// pipes on fds 3 and 4; the child's stdin, stdout and stderr stay attached
// to the parent's so uncaptured test output remains visible.
func NewExecSpawner(binary string, args []string) SpawnFunc {
	return func(ctx context.Context, workerID int) (WorkerProc, error) {
		cmdR, cmdW, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		resR, resW, err := os.Pipe()
		if err != nil {
			cmdR.Close()
			cmdW.Close()
			return nil, err
		}

		cmd := exec.CommandContext(ctx, binary, append(args, fmt.Sprintf("--worker-id=%d", workerID))...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.ExtraFiles = []*os.File{cmdR, resW}

		if err := cmd.Start(); err != nil {
			cmdR.Close()
			cmdW.Close()
			resR.Close()
			resW.Close()
			return nil, fmt.Errorf("starting worker %d: %w", workerID, err)
		}
		// The child inherited its ends; drop the parent's duplicates so the
		// child observes EOF when the parent's write end closes.
		cmdR.Close()
		resW.Close()

		return &execWorker{
			workerID: workerID,
			cmd:      cmd,
			ch:       newChannel(resR, cmdW),
		}, nil
	}
}

// execWorker is one child-process worker.
type execWorker struct {
	workerID int
	cmd      *exec.Cmd
	ch       *channel
}

func (w *execWorker) ID() int                  { return w.workerID }
func (w *execWorker) Send(cmd command) error   { return w.ch.send(cmd) }
func (w *execWorker) Recv(env *envelope) error { return w.ch.recv(env) }
func (w *execWorker) CloseChannel() error      { return w.ch.Close() }
func (w *execWorker) Wait() error              { return w.cmd.Wait() }

// WorkerFiles returns the child-process side of the protocol pipes. Called
// by the worker entrypoint before handing the streams to RunWorker.
func WorkerFiles() (r, w *os.File) {
	return os.NewFile(WorkerCmdFD, "worker-commands"),
		os.NewFile(WorkerResultFD, "worker-results")
}
