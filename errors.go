package taskloop

import (
	"errors"
)

var (
	// ErrNoSession indicates a task submission on a goroutine with no active
	// session. TaskExecutor.Submit and DaemonExecutor.Submit surface it as a
	// recoverable *RejectedError; Spawn, SpawnDaemon and CancelAll escalate
	// the same condition to a panic, as those interfaces have no channel to
	// hand the task back through.
	ErrNoSession = errors.New("taskloop: no session active on the calling goroutine")
)

// RejectedError is returned by the executor Submit methods when no session
// is active on the executor's goroutine. It carries the rejected task back
// so the caller may run it elsewhere or drop it.
type RejectedError struct {
	// Task is the task that was not submitted.
	Task Task
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return "taskloop: task rejected: no session active on the calling goroutine"
}

// Unwrap returns ErrNoSession, enabling matching via [errors.Is].
func (e *RejectedError) Unwrap() error { return ErrNoSession }
