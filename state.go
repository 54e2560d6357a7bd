package taskloop

import (
	"sync/atomic"
)

// parkState represents the occupancy of a sleeper's parking slot.
//
// State Machine:
//
//	parkAwake (0) → parkParked (1)    [Sleep() via CAS]
//	parkAwake (0) → parkNotified (2)  [Unpark() via CAS, flag only]
//	parkParked (1) → parkNotified (2) [Unpark() via CAS, then wake write]
//	parkNotified (2) → parkAwake (0)  [Sleep() consumes the wake]
//	any → parkClosed (3)              [Close(), terminal]
//
// State Transition Rules:
//   - Use TryTransition() (CAS) for all non-terminal movement.
//   - Only Close() may install parkClosed, and only via CAS from a loaded
//     state, so an in-flight Unpark can never win a transition afterwards.
type parkState uint32

const (
	// parkAwake indicates the session goroutine is running, not parked.
	parkAwake parkState = iota
	// parkParked indicates the session goroutine is blocked in Sleep.
	parkParked
	// parkNotified indicates a wake is pending and will be consumed by the
	// current or next Sleep.
	parkNotified
	// parkClosed indicates the sleeper has been torn down.
	parkClosed
)

// String returns a human-readable representation of the state.
func (s parkState) String() string {
	switch s {
	case parkAwake:
		return "Awake"
	case parkParked:
		return "Parked"
	case parkNotified:
		return "Notified"
	case parkClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder with cache-line padding.
//
// The padding prevents false sharing between the session goroutine (which
// parks) and the goroutines delivering wakes.
type fastState struct { // betteralign:ignore
	_ [64]byte      // Cache line padding (before value) //nolint:unused
	v atomic.Uint32 // State value
	_ [60]byte      // Pad to complete cache line (64 - 4 = 60) //nolint:unused
}

// Load returns the current state atomically.
func (s *fastState) Load() parkState {
	return parkState(s.v.Load())
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *fastState) TryTransition(from, to parkState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
