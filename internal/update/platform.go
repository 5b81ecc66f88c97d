package update

import (
	"net/url"
	"runtime"
	"strings"
)

const (
	PlatformDarwin = "darwin"
	PlatformWin32  = "win32"
	PlatformLinux  = "linux"
)

// Platform maps a GOOS value to the feed platform id.
func Platform(goos string) string {
	switch goos {
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWin32
	default:
		return PlatformLinux
	}
}

// CurrentPlatform is Platform(runtime.GOOS).
func CurrentPlatform() string { return Platform(runtime.GOOS) }

// ChannelFile names the release descriptor for platform.
func ChannelFile(platform string) string {
	switch platform {
	case PlatformDarwin:
		return "latest-mac.yml"
	case PlatformWin32:
		return "latest.yml"
	default:
		return "latest-linux.yml"
	}
}

// PlatformBase is <feed>/<platform>/, the directory artifacts resolve against.
func PlatformBase(feed, platform string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(feed), "/") + "/" + platform + "/")
	if err != nil {
		return nil, checkFailed("feed url %q: %w", feed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, checkFailed("feed url %q: scheme must be http or https", feed)
	}
	return u, nil
}
