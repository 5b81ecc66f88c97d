package update

import (
	"strings"

	"go.yaml.in/yaml/v3"
)

// Release is the channel file contents.
type Release struct {
	Version     string `yaml:"version"`
	Path        string `yaml:"path"`
	SHA512      string `yaml:"sha512"`
	ReleaseDate string `yaml:"releaseDate"`
	Files       []File `yaml:"files"`
}

type File struct {
	URL    string `yaml:"url"`
	SHA512 string `yaml:"sha512"`
	Size   int64  `yaml:"size"`
}

// Artifact returns the file to download and its expected checksum. The first
// entry of Files wins; Path/SHA512 are the legacy fallback.
func (r Release) Artifact() (File, bool) {
	for _, f := range r.Files {
		if strings.TrimSpace(f.URL) != "" {
			if f.SHA512 == "" {
				f.SHA512 = r.SHA512
			}
			return f, true
		}
	}
	if strings.TrimSpace(r.Path) != "" {
		return File{URL: r.Path, SHA512: r.SHA512}, true
	}
	return File{}, false
}

func parseRelease(b []byte) (Release, error) {
	var r Release
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Release{}, checkFailed("parse channel file: %w", err)
	}
	r.Version = strings.TrimSpace(r.Version)
	if r.Version == "" {
		return Release{}, checkFailed("channel file has no version")
	}
	return r, nil
}
