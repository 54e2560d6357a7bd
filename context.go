package taskloop

// Session is an opaque proof that the calling goroutine is reserved for an
// active session. Values are only obtainable through [Context.Session], so
// holding one witnesses that [Run] is on the stack.
type Session struct {
	st *sessionState
}

// Context is yielded to the initializer passed to [Run] and [RunWith]. It
// exists mostly to leave room for additional contextual information; for
// now it only carries the goroutine's [Session] reservation.
type Context struct {
	st *sessionState
}

// Session returns proof of the active session.
func (c *Context) Session() *Session {
	return &Session{st: c.st}
}
