//go:build linux || darwin

package taskloop

import (
	"unsafe"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// fdSleeper parks the session thread in a blocking read on a wake FD: an
// eventfd on Linux, a self-pipe on Darwin. The park state machine keeps the
// syscall count down: Unpark only writes to the FD when the sleeper is
// actually parked, and a wake delivered while awake is consumed flag-only
// by the next Sleep.
type fdSleeper struct {
	state fastState
	rfd   int
	wfd   int
}

// newFDSleeper creates the platform wake FD pair.
func newFDSleeper() (*fdSleeper, error) {
	rfd, wfd, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &fdSleeper{rfd: rfd, wfd: wfd}, nil
}

// newDefaultSleeper returns the FD-based sleeper, falling back to the
// channel sleeper if FD setup fails (e.g. descriptor exhaustion).
func newDefaultSleeper(logger *logiface.Logger[logiface.Event]) Sleeper {
	s, err := newFDSleeper()
	if err != nil {
		logger.Debug().
			Err(err).
			Log("taskloop: wake fd unavailable, using channel sleeper")
		return NewChanSleeper()
	}
	return s
}

func (s *fdSleeper) Unparker() Unparker { return s }

func (s *fdSleeper) Sleep() {
	if s.state.TryTransition(parkNotified, parkAwake) {
		// A wake arrived while awake; no syscall needed.
		return
	}
	if !s.state.TryTransition(parkAwake, parkParked) {
		// A notify raced in between the two checks, or the sleeper is
		// closed; either way, do not block.
		s.state.TryTransition(parkNotified, parkAwake)
		return
	}
	var buf [8]byte
	for {
		_, err := readFD(s.rfd, buf[:])
		if err != unix.EINTR {
			break
		}
	}
	// Consume the notification. A failed transition means Close raced the
	// read; leave the terminal state in place.
	s.state.TryTransition(parkNotified, parkAwake)
}

func (s *fdSleeper) Unpark() {
	for {
		switch st := s.state.Load(); st {
		case parkNotified, parkClosed:
			// Wake already pending, or defunct.
			return
		case parkAwake:
			if s.state.TryTransition(parkAwake, parkNotified) {
				return
			}
		case parkParked:
			if s.state.TryTransition(parkParked, parkNotified) {
				s.wakeWrite()
				return
			}
		}
	}
}

// wakeWrite unblocks the parked reader. Reached only after winning the
// parkParked → parkNotified transition, which Close can no longer revoke,
// so the FDs are still open here.
func (s *fdSleeper) wakeWrite() {
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	for {
		_, err := writeFD(s.wfd, buf)
		if err != unix.EINTR {
			return
		}
	}
}

// Close tears down the wake FDs. Must not be called concurrently with
// Sleep; sessions only close after the drive loop has exited.
func (s *fdSleeper) Close() error {
	for {
		st := s.state.Load()
		if st == parkClosed {
			return nil
		}
		if s.state.TryTransition(st, parkClosed) {
			break
		}
	}
	err := closeFD(s.rfd)
	if s.wfd != s.rfd {
		if err2 := closeFD(s.wfd); err == nil {
			err = err2
		}
	}
	return err
}
