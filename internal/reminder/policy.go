package reminder

import (
	"strings"
	"time"
)

// Policy decides what happens when the requested time of day is not after now.
type Policy string

const (
	// PolicyRollover moves the target to the same HH:MM on the next day.
	PolicyRollover Policy = "rollover"
	// PolicyImmediate fires right away (delay clamped to zero).
	PolicyImmediate Policy = "immediate"
	// PolicyReject fails the request with ErrTimePassed.
	PolicyReject Policy = "reject"
)

// ParsePolicy maps a config string to a Policy. Empty means PolicyRollover.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyRollover, nil
	case PolicyRollover, PolicyImmediate, PolicyReject:
		return p, nil
	default:
		return "", invalidf("past policy %q (use rollover, immediate or reject)", s)
	}
}

// ComputeTarget resolves at to an absolute instant on now's calendar day in
// loc (seconds and nanoseconds zeroed) and returns the delay from now.
//
// When the target is not after now, p decides: rollover adds one calendar day,
// immediate keeps the past target with a zero delay, reject returns ErrTimePassed.
func ComputeTarget(now time.Time, at TimeOfDay, loc *time.Location, p Policy) (time.Time, time.Duration, error) {
	if err := at.Validate(); err != nil {
		return time.Time{}, 0, err
	}
	if loc == nil {
		loc = now.Location()
	}
	local := now.In(loc)
	y, m, d := local.Date()
	target := time.Date(y, m, d, at.Hour, at.Minute, 0, 0, loc)
	if target.After(now) {
		return target, target.Sub(now), nil
	}

	switch p {
	case PolicyImmediate:
		return target, 0, nil
	case PolicyReject:
		return time.Time{}, 0, ErrTimePassed
	case PolicyRollover, "":
		// time.Date normalizes d+1 across month/year ends and keeps HH:MM across DST.
		target = time.Date(y, m, d+1, at.Hour, at.Minute, 0, 0, loc)
		return target, target.Sub(now), nil
	default:
		return time.Time{}, 0, invalidf("unknown past policy %q", string(p))
	}
}
