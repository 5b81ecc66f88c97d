package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tasky/pkg/logx"
)

// maxChannelFile bounds the channel file read.
const maxChannelFile = 1 << 20

// Check is the result of one feed lookup.
type Check struct {
	Current   string
	Release   Release
	Available bool
}

// Checker fetches the channel file for one platform.
type Checker struct {
	client   *http.Client
	feed     string
	platform string
	current  string
	log      logx.Logger
}

func NewChecker(client *http.Client, feed, platform, current string, log logx.Logger) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if platform == "" {
		platform = CurrentPlatform()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{client: client, feed: feed, platform: platform, current: current, log: log}
}

func (c *Checker) Platform() string { return c.platform }

// Check downloads and parses the channel file and compares versions.
func (c *Checker) Check(ctx context.Context) (Check, error) {
	base, err := PlatformBase(c.feed, c.platform)
	if err != nil {
		return Check{}, err
	}
	u := base.JoinPath(ChannelFile(c.platform))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return Check{}, checkFailed("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.client.Do(req)
	if err != nil {
		return Check{}, checkFailed("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Check{}, checkFailed("fetch %s: %s", u, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxChannelFile))
	if err != nil {
		return Check{}, checkFailed("read %s: %w", u, err)
	}
	rel, err := parseRelease(b)
	if err != nil {
		return Check{}, err
	}
	newer, err := Newer(c.current, rel.Version)
	if err != nil {
		return Check{}, err
	}
	c.log.Debug("feed checked",
		logx.String("url", u.String()),
		logx.String("current", c.current),
		logx.String("latest", rel.Version),
		logx.Bool("available", newer),
	)
	return Check{Current: c.current, Release: rel, Available: newer}, nil
}

// artifactURL resolves a release file against the platform directory.
func (c *Checker) artifactURL(f File) (string, error) {
	base, err := PlatformBase(c.feed, c.platform)
	if err != nil {
		return "", err
	}
	ref, err := base.Parse(f.URL)
	if err != nil {
		return "", fmt.Errorf("%w: artifact url %q: %w", ErrUpdateCheckFailed, f.URL, err)
	}
	return ref.String(), nil
}
