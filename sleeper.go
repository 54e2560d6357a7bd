package taskloop

// Unparker unblocks a sleeping session goroutine. Unparkers are safe for
// concurrent use from any goroutine, and remain valid, as no-ops, after the
// owning session has returned.
type Unparker interface {
	Unpark()
}

// Sleeper supplies the blocking strategy for a session: Sleep parks the
// session goroutine while the ready queue is empty, and Unparker returns
// the token other goroutines use to unpark it.
//
// Sleep is only ever called from the session goroutine. Unpark tokens are
// level-triggered: an Unpark delivered before Sleep must make the next
// Sleep return promptly rather than block.
//
// Sessions close sleepers they created themselves; a Sleeper supplied via
// WithSleeper is owned, and torn down, by the caller.
type Sleeper interface {
	Unparker() Unparker
	Sleep()
}

// chanSleeper parks on a one-slot channel. The buffered send doubles as the
// level-trigger: an Unpark before Sleep leaves the slot full.
type chanSleeper struct {
	ch chan struct{}
}

// NewChanSleeper returns a portable Sleeper backed by a one-slot channel.
// It is the default sleep strategy on platforms without an FD-based parker,
// and a deterministic choice for tests.
func NewChanSleeper() Sleeper {
	return &chanSleeper{ch: make(chan struct{}, 1)}
}

func (s *chanSleeper) Unparker() Unparker { return s }

func (s *chanSleeper) Sleep() {
	<-s.ch
}

func (s *chanSleeper) Unpark() {
	select {
	case s.ch <- struct{}{}:
	default: // a wake is already pending
	}
}
