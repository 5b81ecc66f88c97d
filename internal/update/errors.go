package update

import (
	"errors"
	"fmt"
)

var (
	// ErrUpdateCheckFailed wraps every network, status, parse and checksum
	// failure of a check.
	ErrUpdateCheckFailed = errors.New("update check failed")

	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrUpdateCheckFailed)

	// ErrCheckInProgress is returned when a check is already running.
	ErrCheckInProgress = errors.New("update check already in progress")
)

func checkFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrUpdateCheckFailed, fmt.Errorf(format, args...))
}
