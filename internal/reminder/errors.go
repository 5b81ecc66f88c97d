package reminder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed schedule requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimePassed is returned under PolicyReject when the time of day has
	// already passed. It also matches ErrInvalidArgument.
	ErrTimePassed = fmt.Errorf("%w: time of day already passed today", ErrInvalidArgument)

	// ErrNotRunning is returned when the scheduler loop is not started.
	ErrNotRunning = errors.New("reminder scheduler not running")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
