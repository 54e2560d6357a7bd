package taskloop

import (
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/joeycumines/logiface"
)

// Run reserves the calling goroutine for a session, invokes init to seed it
// with tasks, then drives every spawned task to completion before returning
// init's result.
//
// Within init, and within any task poll, the session may be grown with
// [Spawn], [SpawnDaemon], or the executors, and ended early with
// [CancelAll]. Run returns once every primary task has finished, or
// cancellation was observed; daemon tasks still unfinished at that point
// are discarded without being polled again.
//
// Panics if the calling goroutine is already running a session.
func Run[R any](init func(*Context) R) R {
	return RunWith(init)
}

// RunWith is [Run] with configuration, such as a custom [Sleeper] via
// [WithSleeper], diagnostics via [WithLogger], or counters via
// [WithMetrics].
func RunWith[R any](init func(*Context) R, opts ...Option) R {
	if init == nil {
		panic(`taskloop: nil initializer`)
	}
	cfg, err := resolveRunOptions(opts)
	if err != nil {
		panic(err)
	}

	// The session promises its tasks a single OS thread for its whole
	// extent; tasks may rely on thread-local state.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	st := registerSession()
	defer unregisterSession(st)

	st.logger = cfg.logger
	st.metrics = cfg.metrics

	sleeper := cfg.sleeper
	if sleeper == nil {
		sleeper = newDefaultSleeper(cfg.logger)
		if c, ok := sleeper.(io.Closer); ok {
			defer func() {
				if err := c.Close(); err != nil {
					st.logger.Warning().Err(err).Log("closing default sleeper failed")
				}
			}()
		}
	}

	sched := newScheduler(sleeper.Unparker())
	// Unfinished tasks are dropped without another poll on every exit
	// path, a panicking initializer included.
	defer func() {
		if n := sched.discardAll(st.logger); n > 0 {
			st.metrics.tasksDiscarded(n)
			st.logger.Debug().Int("discarded", n).Log("dropped unfinished tasks at session exit")
		}
	}()

	st.logger.Debug().Uint64("goroutine", st.gid).Log("session started")

	var ret R
	st.withScheduler(sched, func() {
		ret = init(&Context{st: st})
	})

	drive(st, sched, sleeper)

	st.logger.Debug().
		Uint64("goroutine", st.gid).
		Bool("cancelled", st.cancelled).
		Log("session finished")

	return ret
}

// drive is the session's main loop: poll ready tasks until every primary
// task finished or cancellation was observed. Each poll reinstalls the
// scheduler handle lent back by tick, so tasks can submit further work.
func drive(st *sessionState, sched *scheduler, sleeper Sleeper) {
	measure := st.metrics != nil
	pollEntry := func(lent *scheduler, n *node) (status Status) {
		var start time.Time
		if measure {
			start = time.Now()
		}
		st.withScheduler(lent, func() {
			status = safePoll(st, n)
		})
		if measure {
			st.metrics.pollObserved(time.Since(start))
		}
		return
	}

	for st.running() {
		res, k := sched.tick(pollEntry)
		switch res {
		case tickData:
			st.metrics.taskCompleted()
			if k == kindPrimary {
				if st.primary == 0 {
					panic(`taskloop: primary task count underflow`)
				}
				st.primary--
			}
		case tickPolled:
			// Pending again; the loop guard re-checks before the next
			// tick, so a busy session never parks here.
		case tickEmpty:
			st.metrics.sleepObserved()
			st.logger.Trace().Log("parking: no tasks ready")
			sleeper.Sleep()
		case tickInconsistent:
			st.metrics.inconsistentObserved()
			runtime.Gosched()
		}
	}
}

// safePoll polls a single entry with panic containment: a panicking task is
// logged together with its stack and retired as finished, and the session
// carries on with its remaining work.
func safePoll(st *sessionState, n *node) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			st.metrics.taskPanicked()
			st.logger.Err().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Log("task panicked; treating as finished")
			status = StatusDone
		}
	}()
	return n.task.Poll(n)
}

// safeClose invokes a discarded task's close hook with panic containment,
// so teardown always completes.
func safeClose(c io.Closer, logger *logiface.Logger[logiface.Event]) {
	defer func() {
		if r := recover(); r != nil {
			logger.Err().Interface("panic", r).Log("task close hook panicked")
		}
	}()
	if err := c.Close(); err != nil {
		logger.Warning().Err(err).Log("task close hook failed")
	}
}
