//go:build linux

package taskloop

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both read and write ends.
//
// The descriptor is intentionally left blocking: Sleep parks the session
// thread in the read, and the counting semantics make earlier wakes stick.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	return fd, fd, err
}
