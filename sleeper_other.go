//go:build !linux && !darwin

package taskloop

import (
	"github.com/joeycumines/logiface"
)

// newDefaultSleeper returns the portable channel sleeper on platforms
// without an FD-based parker.
func newDefaultSleeper(*logiface.Logger[logiface.Event]) Sleeper {
	return NewChanSleeper()
}
