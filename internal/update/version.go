package update

import (
	"strings"

	"golang.org/x/mod/semver"
)

// canonical turns "1.2.3" or "v1.2.3" into a semver string, or "" if invalid.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Newer reports whether latest is a higher version than current.
func Newer(current, latest string) (bool, error) {
	c, l := canonical(current), canonical(latest)
	if l == "" {
		return false, checkFailed("feed version %q is not semver", latest)
	}
	if c == "" {
		return false, checkFailed("running version %q is not semver", current)
	}
	return semver.Compare(l, c) > 0, nil
}
