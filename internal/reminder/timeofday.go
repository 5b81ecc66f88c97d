package reminder

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time without date, seconds or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return invalidf("hour %d out of range [0,23]", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return invalidf("minute %d out of range [0,59]", t.Minute)
	}
	return nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "HH:MM" (or "H:MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := s
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || hh == "" || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return TimeOfDay{}, invalidf("time %q, expected HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, invalidf("hour in %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, invalidf("minute in %q", raw)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if err := t.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return t, nil
}

// digits reports whether s is ASCII 0-9 only. Atoi alone would take a sign.
func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
