package taskloop

import (
	"runtime"
	"sync"

	"github.com/joeycumines/logiface"
)

// sessionState is the per-session bookkeeping, confined to the session
// goroutine. Only the registry that maps goroutine IDs to sessions is
// shared; the fields themselves are read and written exclusively between
// polls on the owning goroutine, so they need no synchronization.
type sessionState struct {
	gid       uint64
	cancelled bool
	primary   uint64
	sched     *scheduler
	logger    *logiface.Logger[logiface.Event]
	metrics   *Metrics
}

// running reports whether the drive loop should keep going: at least one
// primary task unfinished and no cancellation observed.
func (st *sessionState) running() bool {
	return st.primary > 0 && !st.cancelled
}

// withScheduler installs sched as the session's live handle for the
// duration of body. The handle slot must be empty on entry, and is cleared
// on every exit path, including panics, so a longer-lived reference can
// never observe a stale handle.
func (st *sessionState) withScheduler(sched *scheduler, body func()) {
	if st.sched != nil {
		panic(`taskloop: scheduler handle already installed`)
	}
	st.sched = sched
	defer func() { st.sched = nil }()
	body()
}

// sessions maps goroutine IDs to their active session. A goroutine has at
// most one entry; registration of a second session on the same goroutine is
// a programming error.
var sessions = struct {
	mu sync.RWMutex
	m  map[uint64]*sessionState
}{m: make(map[uint64]*sessionState)}

// registerSession claims the calling goroutine for a new session, returning
// its state. Panics if the goroutine already hosts one.
func registerSession() *sessionState {
	gid := getGoroutineID()
	st := &sessionState{gid: gid}
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if _, ok := sessions.m[gid]; ok {
		panic(`taskloop: session already running on this goroutine`)
	}
	sessions.m[gid] = st
	return st
}

// unregisterSession releases the goroutine's session slot.
func unregisterSession(st *sessionState) {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	delete(sessions.m, st.gid)
}

// currentSession returns the calling goroutine's session, or nil.
func currentSession() *sessionState {
	gid := getGoroutineID()
	sessions.mu.RLock()
	defer sessions.mu.RUnlock()
	return sessions.m[gid]
}

// getGoroutineID returns the current goroutine's ID, parsed from the
// runtime stack header, e.g. "goroutine 18 [running]:".
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
