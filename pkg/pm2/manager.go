package pm2

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gopm2/gopm2/pkg/types"
)

// DefaultLogTimeout is the budget for log retrieval, which can move far
// more output than other commands.
const DefaultLogTimeout = 60 * time.Second

// Manager is the facade over the pm2 daemon. Every method fetches its own
// fresh snapshot list; there is no cache and no consistency guarantee
// across calls — the daemon is the sole source of truth. Methods never
// retry and never mask a daemon failure.
//
// A Manager is safe for concurrent use: its only state is the executor's
// immutable binary path. Concurrent mutating calls are independent
// subprocess launches with no cross-call ordering guarantee.
type Manager struct {
	exec       *Executor
	timeout    time.Duration
	logTimeout time.Duration
}

// NewManager creates a manager for the given pm2 binary. With validate set,
// the binary is probed before the manager is returned; see NewExecutor.
func NewManager(binary string, validate bool) (*Manager, error) {
	e, err := NewExecutor(binary, validate)
	if err != nil {
		return nil, err
	}
	return &Manager{exec: e, timeout: DefaultTimeout, logTimeout: DefaultLogTimeout}, nil
}

// NewManagerWithExecutor wires an existing executor, primarily for tests
// and callers who need custom timeouts.
func NewManagerWithExecutor(e *Executor, timeout, logTimeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logTimeout <= 0 {
		logTimeout = DefaultLogTimeout
	}
	return &Manager{exec: e, timeout: timeout, logTimeout: logTimeout}
}

// Binary returns the configured pm2 binary path.
func (m *Manager) Binary() string { return m.exec.Binary() }

// IsRunning reports whether the pm2 daemon is up and responsive. Any
// failure, of any class, reads as false; this is the one place errors are
// deliberately swallowed.
func (m *Manager) IsRunning(ctx context.Context) bool {
	_, err := m.exec.Execute(ctx, m.timeout, "ping")
	return err == nil
}

// List returns a snapshot of every process the daemon manages.
func (m *Manager) List(ctx context.Context) ([]types.Process, error) {
	result, err := m.exec.Execute(ctx, m.timeout, "jlist")
	if err != nil {
		return nil, err
	}
	procs, err := types.ParseProcessList([]byte(result.Stdout))
	if err != nil {
		var missing types.MissingNameError
		if errors.As(err, &missing) {
			return nil, validationError("%s", missing.Error())
		}
		return nil, fmt.Errorf("pm2 jlist output: %w", err)
	}
	return procs, nil
}

// Get returns the process matching the identifier, resolved against a
// fresh listing. With no identifier it returns a ValidationError; with no
// match, a NotFoundError carrying the identifier and its kind.
func (m *Manager) Get(ctx context.Context, id Ident) (*types.Process, error) {
	if id.IsZero() {
		return nil, validationError("at least one identifier (name, pid, pm_id) must be provided")
	}
	procs, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	return id.resolve(procs)
}

// StartOptions enumerates the recognized pm2 start options and their exact
// flag mapping. Unrecognized options do not exist: anything not listed here
// cannot reach the command line.
type StartOptions struct {
	Name             string            // --name
	Instances        types.Instances   // -i (types.MaxInstances for "max"); >1 or max implies cluster mode
	Env              map[string]string // repeated --env k=v, sorted by key for a deterministic argv
	Args             []string          // forwarded to the script after --
	Cwd              string            // --cwd
	Interpreter      string            // --interpreter
	MaxMemoryRestart string            // --max-memory-restart
	Watch            bool              // --watch
	OutFile          string            // --output
	ErrorFile        string            // --error
}

func (o StartOptions) argv(script string) []string {
	args := []string{"start", script}
	if o.Name != "" {
		args = append(args, "--name", o.Name)
	}
	if o.Instances != 0 {
		args = append(args, "-i", o.Instances.String())
	}
	if len(o.Env) > 0 {
		keys := make([]string, 0, len(o.Env))
		for k := range o.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			args = append(args, "--env", k+"="+o.Env[k])
		}
	}
	if o.Cwd != "" {
		args = append(args, "--cwd", o.Cwd)
	}
	if o.Interpreter != "" {
		args = append(args, "--interpreter", o.Interpreter)
	}
	if o.MaxMemoryRestart != "" {
		args = append(args, "--max-memory-restart", o.MaxMemoryRestart)
	}
	if o.Watch {
		args = append(args, "--watch")
	}
	if o.OutFile != "" {
		args = append(args, "--output", o.OutFile)
	}
	if o.ErrorFile != "" {
		args = append(args, "--error", o.ErrorFile)
	}
	if len(o.Args) > 0 {
		args = append(args, "--")
		args = append(args, o.Args...)
	}
	return args
}

// Start launches a new process and returns its snapshot. An empty script
// is rejected before any subprocess runs; a directory path is rejected
// with PathIsFolderError.
//
// When no name is given the result is resolved by taking the maximum pm_id
// from the refreshed list. That leans on the daemon assigning ids
// monotonically — an external contract this library cannot enforce, and
// one that breaks under concurrent unnamed starts. Name your processes if
// you start them concurrently.
func (m *Manager) Start(ctx context.Context, script string, opts StartOptions) (*types.Process, error) {
	if script == "" {
		return nil, validationError("script path cannot be empty")
	}
	if info, err := os.Stat(script); err == nil && info.IsDir() {
		return nil, pathIsFolderError(script)
	}

	if _, err := m.exec.Execute(ctx, m.timeout, opts.argv(script)...); err != nil {
		// The daemon owns duplicate detection; surface its report as the
		// dedicated type when it is recognizable.
		var cmdErr *CommandError
		if opts.Name != "" && errors.As(err, &cmdErr) && strings.Contains(cmdErr.Message, "already launched") {
			return nil, NewAlreadyExistsError(opts.Name, cmdErr.Message)
		}
		return nil, err
	}

	if opts.Name != "" {
		return m.Get(ctx, ByName(opts.Name))
	}

	procs, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		return nil, processError("failed to retrieve started process: daemon reports no processes")
	}
	newest := &procs[0]
	for i := range procs {
		if procs[i].PMID > newest.PMID {
			newest = &procs[i]
		}
	}
	return newest, nil
}

// Stop gracefully stops the target process and returns its refreshed
// snapshot. The target is resolved once; its pm_id drives both the stop
// and the follow-up fetch.
func (m *Manager) Stop(ctx context.Context, id Ident) (*types.Process, error) {
	return m.lifecycle(ctx, "stop", id)
}

// Restart restarts the target process and returns its refreshed snapshot.
func (m *Manager) Restart(ctx context.Context, id Ident) (*types.Process, error) {
	return m.lifecycle(ctx, "restart", id)
}

// Reload performs a zero-downtime reload and returns the refreshed
// snapshot. The no-instance-gap guarantee in cluster mode is the daemon's
// operational contract, not behavior implemented here.
func (m *Manager) Reload(ctx context.Context, id Ident) (*types.Process, error) {
	return m.lifecycle(ctx, "reload", id)
}

func (m *Manager) lifecycle(ctx context.Context, op string, id Ident) (*types.Process, error) {
	proc, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := m.exec.Execute(ctx, m.timeout, op, strconv.Itoa(proc.PMID)); err != nil {
		return nil, err
	}
	return m.Get(ctx, ByPMID(proc.PMID))
}

// Delete permanently removes the target from the daemon. The process is
// stopped if running; there is no snapshot to return afterward. This is
// irreversible.
func (m *Manager) Delete(ctx context.Context, id Ident) error {
	proc, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = m.exec.Execute(ctx, m.timeout, "delete", strconv.Itoa(proc.PMID))
	return err
}

// Logs returns the most recent log lines for the target process, stdout
// and stderr interleaved as the daemon formats them. lines <= 0 means 100.
// Retrieval shells out to the daemon's log subcommand rather than reading
// log files off disk: slower, but authoritative under rotation.
func (m *Manager) Logs(ctx context.Context, id Ident, lines int) (string, error) {
	if lines <= 0 {
		lines = 100
	}
	proc, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	result, err := m.exec.Execute(ctx, m.logTimeout, "logs", proc.Name, "--lines", strconv.Itoa(lines), "--nostream")
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// FlushLogs clears log files. With a name the flush targets it directly;
// with a pid or pm_id the target is resolved to its name first.
//
// With the zero Ident, logs for EVERY process are flushed. That broad
// default matches the pm2 CLI, but call it deliberately.
func (m *Manager) FlushLogs(ctx context.Context, id Ident) error {
	switch {
	case id.Name != "":
		_, err := m.exec.Execute(ctx, m.timeout, "flush", id.Name)
		return err
	case !id.IsZero():
		proc, err := m.Get(ctx, id)
		if err != nil {
			return err
		}
		_, err = m.exec.Execute(ctx, m.timeout, "flush", proc.Name)
		return err
	default:
		_, err := m.exec.Execute(ctx, m.timeout, "flush")
		return err
	}
}

// Save persists the current process list so it can be resurrected after a
// daemon restart.
func (m *Manager) Save(ctx context.Context) error {
	_, err := m.exec.Execute(ctx, m.timeout, "save")
	return err
}

// Resurrect restores the previously saved process list and returns a fresh
// listing of what came back.
func (m *Manager) Resurrect(ctx context.Context) ([]types.Process, error) {
	if _, err := m.exec.Execute(ctx, m.timeout, "resurrect"); err != nil {
		return nil, err
	}
	return m.List(ctx)
}

// KillDaemon terminates the pm2 daemon and every process it manages.
// Subsequent operations fail with a connection-class error until a new
// daemon is started externally.
func (m *Manager) KillDaemon(ctx context.Context) error {
	_, err := m.exec.Execute(ctx, m.timeout, "kill")
	return err
}

// ValidateConfig checks a launch configuration before it is handed to the
// daemon. It catches only what can be decided locally; the daemon remains
// the authority on everything else.
func ValidateConfig(cfg types.ProcessConfig) error {
	if cfg.Name == "" {
		return &ConfigurationError{Message: "process name is required", Timestamp: time.Now()}
	}
	if cfg.Script == "" {
		return &ConfigurationError{Message: "script path is required", Timestamp: time.Now()}
	}
	if cfg.MaxRestarts < 0 {
		return &ConfigurationError{Message: "max_restarts cannot be negative", Timestamp: time.Now()}
	}
	if cfg.Instances < types.MaxInstances {
		return &ConfigurationError{Message: "instances must be a positive count or max", Timestamp: time.Now()}
	}
	return nil
}
