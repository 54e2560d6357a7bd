package taskloop

import (
	"io"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// kind tags a scheduled entry's termination role.
type kind uint8

const (
	// kindPrimary entries must finish, or be cancelled, before their
	// session may return.
	kindPrimary kind = iota
	// kindDaemon entries may be abandoned unfinished at session return.
	kindDaemon
)

// tickResult is the outcome of a single scheduler tick.
type tickResult uint8

const (
	// tickData indicates one ready entry was polled and finished.
	tickData tickResult = iota
	// tickPolled indicates one ready entry was polled and remains pending.
	// The entry is not offered again until re-notified.
	tickPolled
	// tickEmpty indicates no entries were ready.
	tickEmpty
	// tickInconsistent indicates a producer was observed mid-push: the
	// queue head was swapped but the link to the new node not yet
	// published. The caller must yield and retry rather than park; the
	// window closes with the producer's very next store, so the retry
	// cannot livelock.
	tickInconsistent
)

// node is one scheduled entry. The node doubles as the entry's Waker:
// waking pushes it back onto the ready queue. The atomic fields participate
// in the multi-producer queue protocol; every other field is either
// immutable after schedule or owned by the session goroutine.
type node struct {
	next   atomic.Pointer[node]
	queued atomic.Bool
	sched  *scheduler
	task   Task
	kind   kind
	done   bool

	// Intrusive list of all live entries, session goroutine only.
	allPrev, allNext *node
}

// Wake implements Waker. Safe to call from any goroutine: enqueueing is a
// lock-free multi-producer push and the unpark token is thread-safe.
// Duplicate wakes coalesce while the entry is queued, and wakes delivered
// after the entry finished (or was discarded) are dropped at the next tick.
func (n *node) Wake() {
	if n.queued.CompareAndSwap(false, true) {
		n.sched.push(n)
		n.sched.unparker.Unpark()
	}
}

// scheduler holds the session's ready queue: an intrusive MPSC linked queue
// (single consumer, the drive loop; producers are wakers on arbitrary
// goroutines) plus a consumer-side list of every live entry, used to
// discard unfinished tasks at session teardown.
//
// The queue is the stub-node design: head is the most recently pushed node,
// tail chases it through the next links. Producers swap head and then
// publish the link, which is the two-step window tickInconsistent reports.
type scheduler struct {
	head atomic.Pointer[node] // producers
	_    [56]byte             // keep producers off the consumer's line //nolint:unused

	// Consumer (session goroutine) only.
	tail    *node
	allHead *node

	stub     node
	unparker Unparker
}

func newScheduler(unparker Unparker) *scheduler {
	s := &scheduler{unparker: unparker}
	s.head.Store(&s.stub)
	s.tail = &s.stub
	return s
}

// schedule enqueues a new entry. Submissions always originate from the
// session goroutine via the installed handle, so linking the entry into the
// all-entries list needs no synchronization. Queue order is submission
// order; it is the only ordering signal.
func (s *scheduler) schedule(t Task, k kind) {
	n := &node{sched: s, task: t, kind: k}
	n.queued.Store(true)
	s.link(n)
	s.push(n)
}

// push appends n to the ready queue. Multi-producer safe.
func (s *scheduler) push(n *node) {
	n.next.Store(nil)
	prev := s.head.Swap(n)
	prev.next.Store(n)
}

// dequeue removes the entry at the tail of the ready queue. The returned
// node is nil unless the result is tickData.
func (s *scheduler) dequeue() (*node, tickResult) {
	tail := s.tail
	next := tail.next.Load()

	if tail == &s.stub {
		if next == nil {
			// Empty, or a producer is mid-push onto the stub; in the
			// latter case the producer's unpark re-runs the tick.
			return nil, tickEmpty
		}
		s.tail = next
		tail = next
		next = tail.next.Load()
	}

	if next != nil {
		s.tail = next
		return tail, tickData
	}

	if s.head.Load() != tail {
		return nil, tickInconsistent
	}

	s.push(&s.stub)

	next = tail.next.Load()
	if next != nil {
		s.tail = next
		return tail, tickData
	}

	return nil, tickInconsistent
}

// tick attempts to advance exactly one ready entry, invoking pollFn with
// the scheduler handle lent back for the duration of the poll (so the
// polled task may itself submit new entries). Stale queue entries, woken
// again after finishing, are dropped without counting as an outcome.
//
// The returned kind is meaningful only for tickData.
func (s *scheduler) tick(pollFn func(sched *scheduler, n *node) Status) (tickResult, kind) {
	for {
		n, res := s.dequeue()
		if n == nil {
			return res, 0
		}
		if n.done {
			continue
		}
		// Clear before polling so a re-notification during the poll
		// re-enqueues the entry.
		n.queued.Store(false)
		if pollFn(s, n) == StatusDone {
			s.complete(n)
			return tickData, n.kind
		}
		return tickPolled, n.kind
	}
}

// complete retires a finished entry, dropping the task reference.
func (s *scheduler) complete(n *node) {
	n.done = true
	n.task = nil
	s.unlink(n)
}

// discardAll drops every remaining entry without polling it, invoking the
// io.Closer hook on tasks that implement it. Returns the number of entries
// discarded.
func (s *scheduler) discardAll(logger *logiface.Logger[logiface.Event]) int {
	var discarded int
	for n := s.allHead; n != nil; {
		next := n.allNext
		t := n.task
		n.done = true
		n.task = nil
		n.allPrev, n.allNext = nil, nil
		if c, ok := t.(io.Closer); ok {
			safeClose(c, logger)
		}
		discarded++
		n = next
	}
	s.allHead = nil
	return discarded
}

func (s *scheduler) link(n *node) {
	n.allNext = s.allHead
	if s.allHead != nil {
		s.allHead.allPrev = n
	}
	s.allHead = n
}

func (s *scheduler) unlink(n *node) {
	if n.allPrev != nil {
		n.allPrev.allNext = n.allNext
	} else {
		s.allHead = n.allNext
	}
	if n.allNext != nil {
		n.allNext.allPrev = n.allPrev
	}
	n.allPrev, n.allNext = nil, nil
}
