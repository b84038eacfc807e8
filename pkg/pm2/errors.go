package pm2

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionError means the pm2 binary is missing, unreachable, or did not
// respond to the startup probe. Nothing was executed against the daemon.
type ConnectionError struct {
	Message   string
	Timestamp time.Time
}

func (e *ConnectionError) Error() string {
	return "pm2 connection error: " + e.Message
}

func connectionError(format string, args ...any) *ConnectionError {
	return &ConnectionError{Message: fmt.Sprintf(format, args...), Timestamp: time.Now()}
}

// CommandError means a specific pm2 invocation failed: non-zero exit or
// timeout. Command holds the full argument vector that was attempted.
type CommandError struct {
	Message   string
	Command   []string
	ExitCode  int // -1 when the process never produced one (timeout, spawn failure)
	TimedOut  bool
	Timestamp time.Time
}

func (e *CommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("pm2 command timed out: %s: %s", strings.Join(e.Command, " "), e.Message)
	}
	return fmt.Sprintf("pm2 command failed (exit %d): %s", e.ExitCode, e.Message)
}

// ProcessError is the base error for process-level failures. Subtypes
// unwrap to it, so errors.As(err, &pe) with a **ProcessError matches any of
// them.
type ProcessError struct {
	Message   string
	Timestamp time.Time
}

func (e *ProcessError) Error() string {
	return "pm2 process error: " + e.Message
}

func processError(format string, args ...any) *ProcessError {
	return &ProcessError{Message: fmt.Sprintf(format, args...), Timestamp: time.Now()}
}

// IdentKind names which identifier matched or failed to match.
type IdentKind string

const (
	KindName IdentKind = "name"
	KindPID  IdentKind = "pid"
	KindPMID IdentKind = "pm_id"
)

// NotFoundError means no process matched the given identifier.
type NotFoundError struct {
	base       ProcessError
	Identifier string
	Kind       IdentKind
}

func notFoundError(identifier string, kind IdentKind) *NotFoundError {
	return &NotFoundError{
		base:       ProcessError{Message: fmt.Sprintf("process with %s %q not found", kind, identifier), Timestamp: time.Now()},
		Identifier: identifier,
		Kind:       kind,
	}
}

func (e *NotFoundError) Error() string { return e.base.Error() }
func (e *NotFoundError) Unwrap() error { return &e.base }

// AlreadyExistsError means a start was attempted under a name the daemon
// already manages. Detection is the daemon's; this library surfaces what
// the failing command reported.
type AlreadyExistsError struct {
	base ProcessError
	Name string
}

// NewAlreadyExistsError builds an AlreadyExistsError for the given process
// name and daemon-reported detail.
func NewAlreadyExistsError(name, detail string) *AlreadyExistsError {
	return &AlreadyExistsError{
		base: ProcessError{Message: fmt.Sprintf("process %q already exists: %s", name, detail), Timestamp: time.Now()},
		Name: name,
	}
}

func (e *AlreadyExistsError) Error() string { return e.base.Error() }
func (e *AlreadyExistsError) Unwrap() error { return &e.base }

// InvalidStateError means the target process is in a state that does not
// support the requested operation.
type InvalidStateError struct {
	base   ProcessError
	Name   string
	Status string
}

// NewInvalidStateError builds an InvalidStateError for an operation that
// the process's current status does not support.
func NewInvalidStateError(name, status, op string) *InvalidStateError {
	return &InvalidStateError{
		base:   ProcessError{Message: fmt.Sprintf("process %q is %s and does not support %s", name, status, op), Timestamp: time.Now()},
		Name:   name,
		Status: status,
	}
}

func (e *InvalidStateError) Error() string { return e.base.Error() }
func (e *InvalidStateError) Unwrap() error { return &e.base }

// ConfigurationError means a malformed launch or ecosystem configuration.
type ConfigurationError struct {
	Message   string
	Timestamp time.Time
}

func (e *ConfigurationError) Error() string {
	return "pm2 configuration error: " + e.Message
}

// ValidationError means the caller supplied invalid input: no identifier
// where one was required, or an empty required string.
type ValidationError struct {
	Message   string
	Timestamp time.Time
}

func (e *ValidationError) Error() string {
	return "pm2 validation error: " + e.Message
}

func validationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Timestamp: time.Now()}
}

// PathIsFolderError means a directory was supplied where a single script
// file was required. It unwraps to ValidationError.
type PathIsFolderError struct {
	base ValidationError
	Path string
}

func pathIsFolderError(path string) *PathIsFolderError {
	return &PathIsFolderError{
		base: ValidationError{Message: fmt.Sprintf("script path %q is a directory, expected a file", path), Timestamp: time.Now()},
		Path: path,
	}
}

func (e *PathIsFolderError) Error() string { return e.base.Error() }
func (e *PathIsFolderError) Unwrap() error { return &e.base }
