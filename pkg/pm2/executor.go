package pm2

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout is the per-command budget applied when a call site passes
// a zero timeout.
const DefaultTimeout = 30 * time.Second

// probeTimeout bounds the version probe at construction.
const probeTimeout = 30 * time.Second

// ExecResult holds the captured output of one pm2 invocation.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs the pm2 binary. It holds no state beyond the binary path,
// which is immutable after construction; concurrent Execute calls are
// independent subprocess launches.
//
// There is a single context-aware implementation rather than separate
// blocking and asynchronous paths: a blocking caller invokes Execute
// directly, a concurrent caller runs it in a goroutine. Result shape and
// error classification are identical either way.
type Executor struct {
	binary string
}

// NewExecutor creates an executor for the given pm2 binary ("pm2" to use
// PATH). When validate is true, the binary is resolved and probed with
// --version; a missing or unresponsive binary returns a ConnectionError
// before any operation proceeds.
func NewExecutor(binary string, validate bool) (*Executor, error) {
	if binary == "" {
		binary = "pm2"
	}
	e := &Executor{binary: binary}
	if validate {
		if err := e.probe(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Binary returns the configured pm2 binary path.
func (e *Executor) Binary() string { return e.binary }

func (e *Executor) probe() error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return connectionError("pm2 binary %q not found: install pm2 (npm install -g pm2) or set the binary path", e.binary)
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return connectionError("pm2 did not respond to version probe within %s", probeTimeout)
		}
		return connectionError("pm2 binary not accessible: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Execute runs `pm2 <args...>` and captures both output streams as text.
// A zero timeout means DefaultTimeout. On timeout the child is forcibly
// terminated and a CommandError with TimedOut set is returned. On non-zero
// exit a CommandError carries the exit code and stderr (or stdout when
// stderr is empty). Cancelling ctx terminates the child before the
// cancellation is propagated, so no orphaned subprocess survives the call.
func (e *Executor) Execute(ctx context.Context, timeout time.Duration, args ...string) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	argv := append([]string{e.binary}, args...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give the child a moment to exit after the kill signal so Wait
	// cannot hang on inherited pipes.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()

	if runCtx.Err() != nil {
		// CommandContext killed the child already.
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, &CommandError{
			Message:   "timed out after " + timeout.String(),
			Command:   argv,
			ExitCode:  -1,
			TimedOut:  true,
			Timestamp: time.Now(),
		}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			return nil, &CommandError{
				Message:   msg,
				Command:   argv,
				ExitCode:  exitErr.ExitCode(),
				Timestamp: time.Now(),
			}
		}
		return nil, &CommandError{
			Message:   err.Error(),
			Command:   argv,
			ExitCode:  -1,
			Timestamp: time.Now(),
		}
	}

	return &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}, nil
}
