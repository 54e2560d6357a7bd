package taskloop

// Status is the outcome of a single poll step.
//
// The engine folds task-internal success and failure into StatusDone; which
// of the two occurred is never inspected and never influences scheduling.
type Status uint8

const (
	// StatusPending indicates the task made no terminal progress and will be
	// polled again once its Waker is notified.
	StatusPending Status = iota
	// StatusDone indicates the task finished, successfully or otherwise.
	StatusDone
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Waker re-notifies the task it was handed to, marking it ready for another
// poll. Wakers are safe for concurrent use and may be invoked from any
// goroutine; together with the sleeper's unpark token this is the only part
// of the API that crosses goroutines. Waking a task that already finished,
// or that was discarded when its session returned, is a no-op.
type Waker interface {
	Wake()
}

// Task is a cooperatively scheduled unit of work, polled repeatedly on the
// session goroutine until it reports StatusDone.
//
// Poll must not block: a task that cannot progress arranges for w to be
// woken later and returns StatusPending immediately. No two tasks are ever
// polled concurrently, and a task is only ever polled by its session
// goroutine, so a task's own state needs no synchronization.
//
// A task holding resources that require deterministic release may
// additionally implement io.Closer. Close is called exactly once if the
// engine discards the task without it having finished, which happens when
// the session returns with the task still pending, or on cancellation.
// Tasks that finish are not closed.
type Task interface {
	Poll(w Waker) Status
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(w Waker) Status

// Poll calls f.
func (f TaskFunc) Poll(w Waker) Status { return f(w) }
