package taskloop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// closerTask is a test task with pluggable poll behaviour and a recorded
// discard hook. The zero poll func never finishes.
type closerTask struct {
	poll    func(w Waker) Status
	onClose func()
}

func (c *closerTask) Poll(w Waker) Status {
	if c.poll == nil {
		return StatusPending
	}
	return c.poll(w)
}

func (c *closerTask) Close() error {
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

func TestRun_ReturnsInitializerResult(t *testing.T) {
	type result struct{ n int }
	r := Run(func(*Context) *result { return &result{n: 7} })
	require.NotNil(t, r)
	require.Equal(t, 7, r.n)
}

func TestRun_NilInitializerPanics(t *testing.T) {
	require.PanicsWithValue(t, `taskloop: nil initializer`, func() {
		Run[any](nil)
	})
}

// TestRun_ManyTasksAllComplete drives a batch of two hundred single-poll
// tasks and requires every one of them to have run by the time Run returns.
func TestRun_ManyTasksAllComplete(t *testing.T) {
	var completed int
	ret := Run(func(*Context) string {
		for i := 0; i < 200; i++ {
			Spawn(TaskFunc(func(Waker) Status {
				completed++
				return StatusDone
			}))
		}
		return "seeded"
	})
	require.Equal(t, "seeded", ret)
	require.Equal(t, 200, completed)
}

func TestRun_PollsInSubmissionOrder(t *testing.T) {
	var order, want []int
	Run(func(*Context) any {
		for i := 0; i < 10; i++ {
			want = append(want, i)
			n := i
			Spawn(TaskFunc(func(Waker) Status {
				order = append(order, n)
				return StatusDone
			}))
		}
		return nil
	})
	require.Equal(t, want, order)
}

// TestRun_TaskSpawnsTask exercises the handle lent back during a poll:
// submissions from inside a task must land in the same session.
func TestRun_TaskSpawnsTask(t *testing.T) {
	var order []string
	Run(func(*Context) any {
		Spawn(TaskFunc(func(Waker) Status {
			order = append(order, "outer")
			Spawn(TaskFunc(func(Waker) Status {
				order = append(order, "inner")
				return StatusDone
			}))
			return StatusDone
		}))
		return nil
	})
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestRun_SelfWakeRepolls(t *testing.T) {
	polls := 0
	Run(func(*Context) any {
		Spawn(TaskFunc(func(w Waker) Status {
			polls++
			if polls < 5 {
				w.Wake()
				return StatusPending
			}
			return StatusDone
		}))
		return nil
	})
	require.Equal(t, 5, polls)
}

// TestRun_ExternalWakeUnblocks parks the session on the default sleeper and
// has another goroutine deliver the wake. The task is handed its waker on
// the first poll; whether the wake lands before or after the session parks,
// the level-triggered unpark must get the task polled again.
func TestRun_ExternalWakeUnblocks(t *testing.T) {
	signal := make(chan struct{})
	wakers := make(chan Waker, 1)

	go func() {
		w := <-wakers
		time.Sleep(10 * time.Millisecond) // give the session time to park
		close(signal)
		w.Wake()
	}()

	var done bool
	Run(func(*Context) any {
		Spawn(TaskFunc(func(w Waker) Status {
			select {
			case <-signal:
				done = true
				return StatusDone
			default:
			}
			select {
			case wakers <- w:
			default:
			}
			return StatusPending
		}))
		return nil
	})
	require.True(t, done)
}

func TestRun_NestedSessionPanics(t *testing.T) {
	require.PanicsWithValue(t, `taskloop: session already running on this goroutine`, func() {
		Run(func(*Context) any {
			Run(func(*Context) any { return nil })
			return nil
		})
	})

	// The goroutine must be released for a fresh session afterwards.
	require.True(t, Run(func(*Context) bool { return true }))
}

// TestRun_NestedSessionInsideTaskContained starts a nested session from a
// task poll. The nested call panics, the poll boundary contains it, and the
// outer session keeps draining its remaining work.
func TestRun_NestedSessionInsideTaskContained(t *testing.T) {
	var after bool
	Run(func(*Context) any {
		Spawn(TaskFunc(func(Waker) Status {
			Run(func(*Context) any { return nil })
			return StatusPending // unreachable
		}))
		Spawn(TaskFunc(func(Waker) Status {
			after = true
			return StatusDone
		}))
		return nil
	})
	require.True(t, after)
}

func TestRun_TaskPanicContained(t *testing.T) {
	var after bool
	Run(func(*Context) any {
		Spawn(TaskFunc(func(Waker) Status {
			panic("task exploded")
		}))
		Spawn(TaskFunc(func(Waker) Status {
			after = true
			return StatusDone
		}))
		return nil
	})
	require.True(t, after)
}

// TestRun_InitializerPanicCleansUp requires teardown on the panic path:
// pending tasks are discarded with their close hooks run, and the goroutine
// is free to host a new session.
func TestRun_InitializerPanicCleansUp(t *testing.T) {
	var closed bool
	require.PanicsWithValue(t, "boom", func() {
		Run(func(*Context) any {
			Spawn(&closerTask{onClose: func() { closed = true }})
			panic("boom")
		})
	})
	require.True(t, closed, "pending task should be closed during teardown")

	require.Equal(t, 42, Run(func(*Context) int { return 42 }))
}

// TestRun_DaemonOnlySessionReturnsImmediately: with no primary tasks the
// drive loop has nothing to gate on, so daemons are never even polled.
func TestRun_DaemonOnlySessionReturnsImmediately(t *testing.T) {
	var polls int
	var closed bool
	Run(func(*Context) any {
		SpawnDaemon(&closerTask{
			poll:    func(Waker) Status { polls++; return StatusPending },
			onClose: func() { closed = true },
		})
		return nil
	})
	require.Zero(t, polls)
	require.True(t, closed, "unfinished daemon should be closed at session exit")
}

// TestRun_DaemonDiscardedWhenPrimariesFinish interleaves a long-lived
// daemon with a short primary: once the primary finishes the session ends,
// dropping the daemon mid-flight and running its close hook. Tasks that
// finish are not closed.
func TestRun_DaemonDiscardedWhenPrimariesFinish(t *testing.T) {
	var daemonPolls int
	var daemonClosed, primaryClosed bool
	Run(func(*Context) any {
		SpawnDaemon(&closerTask{
			poll: func(w Waker) Status {
				daemonPolls++
				w.Wake()
				return StatusPending
			},
			onClose: func() { daemonClosed = true },
		})
		Spawn(&closerTask{
			poll:    func(Waker) Status { return StatusDone },
			onClose: func() { primaryClosed = true },
		})
		return nil
	})
	require.NotZero(t, daemonPolls, "daemon should have been polled while the primary was live")
	require.True(t, daemonClosed, "unfinished daemon should be closed")
	require.False(t, primaryClosed, "finished task must not be closed")
}

func TestRun_SequentialSessionsOnSameGoroutine(t *testing.T) {
	for i := 0; i < 3; i++ {
		var ran bool
		Run(func(*Context) any {
			Spawn(TaskFunc(func(Waker) Status {
				ran = true
				return StatusDone
			}))
			return nil
		})
		require.True(t, ran)
	}
}

// TestRun_ConcurrentSessions hosts independent sessions on several
// goroutines at once; the per-goroutine registry must keep them isolated.
func TestRun_ConcurrentSessions(t *testing.T) {
	const sessions = 8
	var total atomic.Int64
	done := make(chan struct{})
	for i := 0; i < sessions; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			Run(func(*Context) any {
				for j := 0; j < 50; j++ {
					Spawn(TaskFunc(func(Waker) Status {
						total.Add(1)
						return StatusDone
					}))
				}
				return nil
			})
		}()
	}
	for i := 0; i < sessions; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for sessions to finish")
		}
	}
	require.EqualValues(t, sessions*50, total.Load())
}

func TestContext_SessionProof(t *testing.T) {
	Run(func(ctx *Context) any {
		require.NotNil(t, ctx)
		require.NotNil(t, ctx.Session())
		return nil
	})
}
