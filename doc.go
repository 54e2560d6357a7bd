// Package taskloop provides a single-goroutine cooperative task executor:
// a session reserves the calling goroutine, runs an initializer that seeds
// it with tasks, then polls those tasks to completion without any worker
// goroutines of its own.
//
// # Architecture
//
// [Run] hosts a session on the calling goroutine. Tasks enter through
// [Spawn] and [SpawnDaemon], or through the [TaskExecutor] and
// [DaemonExecutor] capability values, and land in an intrusive
// multi-producer ready queue. The drive loop repeatedly takes one ready
// entry and polls it; a task that does not finish is set aside and not
// offered again until woken through the [Waker] it was handed.
//
// Primary tasks gate the session: [Run] returns only once every primary
// task finished or [CancelAll] was observed. Daemon tasks never gate;
// whatever remains unfinished when the session ends is dropped without
// another poll (see [Task] for the io.Closer teardown hook).
//
// # Execution Model
//
// Each loop iteration does exactly one of the following:
//  1. Polls one ready task, retiring it when the poll reports
//     [StatusDone].
//  2. Parks on the session's [Sleeper] when nothing is ready.
//  3. Yields the processor and retries, when the ready queue was caught
//     mid-push by a producer.
//
// The loop parks only on an empty ready queue, so ready work is never
// stranded behind a sleeping session.
//
// # Thread Safety
//
//   - [Waker.Wake] is safe from any goroutine; it is how external events
//     feed a session.
//   - [Spawn], [SpawnDaemon], and [CancelAll] require the calling
//     goroutine to be inside [Run]; the executors additionally pin
//     submissions to the goroutine they were bound to at construction.
//   - [Sleeper] implementations must tolerate [Unparker.Unpark] from any
//     goroutine; [Metrics] is safe for concurrent use.
//
// # Usage
//
//	var polls int
//	taskloop.Run(func(*taskloop.Context) any {
//	    taskloop.Spawn(taskloop.TaskFunc(func(w taskloop.Waker) taskloop.Status {
//	        polls++
//	        if polls < 3 {
//	            w.Wake() // still runnable, poll again
//	            return taskloop.StatusPending
//	        }
//	        return taskloop.StatusDone
//	    }))
//	    return nil
//	})
//
// Note that the initializer returns before any task runs: results computed
// by tasks are communicated through captured variables or channels, not
// through [Run]'s return value.
//
// # Cancellation
//
// [CancelAll] flips a one-way flag checked between polls. The poll in
// progress is never interrupted; from the next iteration the session stops
// polling, discards every remaining task, and returns.
//
// # Diagnostics
//
// [RunWith] accepts [WithLogger] for structured session diagnostics and
// [WithMetrics] for counters and poll-latency percentiles. Both default to
// off.
package taskloop
