package update

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"tasky/pkg/logx"
)

// Artifact is a resolved download.
type Artifact struct {
	Version string
	URL     string
	SHA512  string
	Size    int64
}

// Installer fetches and stages an artifact. It returns the staged path.
type Installer interface {
	Install(ctx context.Context, a Artifact) (string, error)
}

// Prompter asks the user whether to install a release.
type Prompter interface {
	Confirm(ctx context.Context, rel Release) (bool, error)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, rel Release) (bool, error)

func (f PromptFunc) Confirm(ctx context.Context, rel Release) (bool, error) { return f(ctx, rel) }

// Always answers every prompt with yes.
var Always Prompter = PromptFunc(func(context.Context, Release) (bool, error) { return true, nil })

// StagingInstaller downloads into a staging directory and verifies sha512.
// The running binary is never touched; the staged file is picked up by the
// service manager or installer script after exit.
type StagingInstaller struct {
	client *http.Client
	dir    string
	log    logx.Logger
}

func NewStagingInstaller(client *http.Client, dir string, log logx.Logger) *StagingInstaller {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &StagingInstaller{client: client, dir: dir, log: log}
}

func (s *StagingInstaller) Install(ctx context.Context, a Artifact) (string, error) {
	if strings.TrimSpace(a.SHA512) == "" {
		return "", checkFailed("artifact %s has no sha512", a.URL)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, http.NoBody)
	if err != nil {
		return "", checkFailed("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", checkFailed("download %s: %w", a.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", checkFailed("download %s: %s", a.URL, resp.Status)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "tasky-" + a.Version
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha512.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", checkFailed("download %s: %w", a.URL, err)
	}
	if a.Size > 0 && n != a.Size {
		return "", checkFailed("download %s: got %d bytes, want %d", a.URL, n, a.Size)
	}
	if !checksumMatches(h, a.SHA512) {
		return "", fmt.Errorf("%w: %s", ErrChecksumMismatch, a.URL)
	}

	dst := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	tmpName = ""
	s.log.Info("update staged", logx.String("version", a.Version), logx.String("path", dst), logx.Int64("bytes", n))
	return dst, nil
}

// checksumMatches accepts base64 (release feeds) or hex encoded sums.
func checksumMatches(h hash.Hash, want string) bool {
	sum := h.Sum(nil)
	want = strings.TrimSpace(want)
	if want == base64.StdEncoding.EncodeToString(sum) {
		return true
	}
	return strings.EqualFold(want, hex.EncodeToString(sum))
}
