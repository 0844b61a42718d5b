package supervisor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"
)

// Launch is the raw outcome of one process run.
type Launch struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool // Process was killed at the deadline; output discarded
}

// Runner starts one process and waits for it to exit or be killed.
// A non-nil error means the process could not be run at all.
type Runner interface {
	Run(ctx context.Context, dir, name string, args []string, timeout time.Duration) (Launch, error)
}

// ProcessRunner runs real OS processes.
type ProcessRunner struct {
	// WaitDelay bounds how long Wait blocks on output pipes after the kill
	WaitDelay time.Duration
}

// NewProcessRunner creates a ProcessRunner with a 3s pipe drain limit.
func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{WaitDelay: 3 * time.Second}
}

// Run executes name with args in dir, killing its process group at the timeout.
// A timeout of zero means no per-launch limit. A process that exits on its
// own is never reported as timed out, even when a leftover child holds its
// output pipes past the deadline.
func (r *ProcessRunner) Run(ctx context.Context, dir, name string, args []string, timeout time.Duration) (Launch, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	setProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay

	// Cancel only fires while the process is still running.
	var killed atomic.Bool
	kill := cmd.Cancel
	cmd.Cancel = func() error {
		killed.Store(true)
		return kill()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return Launch{}, ctx.Err()
	}
	if killed.Load() && runCtx.Err() == context.DeadlineExceeded {
		return Launch{TimedOut: true, ExitCode: -1}, nil
	}

	launch := Launch{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return launch, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		launch.ExitCode = exitErr.ExitCode()
		return launch, nil
	}
	// The process exited but a child it left behind kept the pipes open.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		launch.ExitCode = cmd.ProcessState.ExitCode()
		return launch, nil
	}
	return Launch{}, err
}
