package taskloop

// Spawn submits a primary task to the session running on the calling
// goroutine. The session does not return until every primary task finishes
// or [CancelAll] is called.
//
// Panics when the goroutine is not inside a call to [Run];
// [TaskExecutor.Submit] is the recoverable equivalent.
func Spawn(t Task) {
	if err := submit(t, kindPrimary); err != nil {
		panic(`taskloop: cannot call Spawn unless the goroutine is in the context of a call to Run`)
	}
}

// SpawnDaemon submits a daemon task to the session running on the calling
// goroutine. Completion of a daemon is not required for the pending [Run]
// call to return; daemons still unfinished at that point are discarded
// without being polled again.
//
// Panics when the goroutine is not inside a call to [Run];
// [DaemonExecutor.Submit] is the recoverable equivalent.
func SpawnDaemon(t Task) {
	if err := submit(t, kindDaemon); err != nil {
		panic(`taskloop: cannot call SpawnDaemon unless the goroutine is in the context of a call to Run`)
	}
}

// CancelAll requests cancellation of every spawned task, daemons included.
// Cancellation is a one-way flag observed between polls: the poll in
// progress is never interrupted, and by the next loop iteration the session
// stops polling and discards whatever remains.
//
// Panics when the goroutine is not inside a call to [Run].
func CancelAll() {
	st := currentSession()
	if st == nil || st.sched == nil {
		panic(`taskloop: cannot call CancelAll unless the goroutine is in the context of a call to Run`)
	}
	st.cancelled = true
	st.logger.Debug().Log("cancelling all spawned tasks")
}

// TaskExecutor submits primary tasks to the session of the goroutine it was
// bound to at construction. It is a value type; copies share the binding.
//
// The user of TaskExecutor must ensure that submissions happen on the bound
// goroutine, within the context of a call to [Run]. Submitting from any
// other goroutine is a programming error and panics; submitting outside a
// session is recoverable and hands the task back via [RejectedError].
type TaskExecutor struct {
	gid uint64
}

// NewTaskExecutor returns an executor bound to the calling goroutine.
// Construction succeeds whether or not a session is active.
func NewTaskExecutor() TaskExecutor {
	return TaskExecutor{gid: getGoroutineID()}
}

// Submit schedules t as a primary task on the bound goroutine's session.
func (e TaskExecutor) Submit(t Task) error {
	checkExecutorGoroutine(e.gid)
	return submit(t, kindPrimary)
}

// DaemonExecutor submits daemon tasks to the session of the goroutine it
// was bound to at construction. It is a value type; copies share the
// binding.
//
// The user of DaemonExecutor must ensure that submissions happen on the
// bound goroutine, within the context of a call to [Run]. Submitting from
// any other goroutine is a programming error and panics; submitting outside
// a session is recoverable and hands the task back via [RejectedError].
type DaemonExecutor struct {
	gid uint64
}

// NewDaemonExecutor returns an executor bound to the calling goroutine.
// Construction succeeds whether or not a session is active.
func NewDaemonExecutor() DaemonExecutor {
	return DaemonExecutor{gid: getGoroutineID()}
}

// Submit schedules t as a daemon task on the bound goroutine's session.
func (e DaemonExecutor) Submit(t Task) error {
	checkExecutorGoroutine(e.gid)
	return submit(t, kindDaemon)
}

func checkExecutorGoroutine(gid uint64) {
	if getGoroutineID() != gid {
		panic(`taskloop: executor used from a goroutine other than the one it was bound to`)
	}
}

// submit schedules t on the calling goroutine's session. It does not panic:
// with no session (equivalently, no installed scheduler handle) the task is
// handed back to the caller inside a *RejectedError.
func submit(t Task, k kind) error {
	if t == nil {
		panic(`taskloop: nil task`)
	}
	st := currentSession()
	if st == nil || st.sched == nil {
		return &RejectedError{Task: t}
	}
	if k == kindPrimary {
		st.primary++
	}
	st.sched.schedule(t, k)
	st.metrics.taskSpawned(k)
	st.logger.Trace().
		Bool("daemon", k == kindDaemon).
		Uint64("primary", st.primary).
		Log("task spawned")
	return nil
}
