package api

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/matt-g-everett/ugoiratx/ugoira"
)

const artifactPrefix = "/artifacts/"

// Store keeps finished artifacts on disk, one directory per job, and knows
// the URL each is served under.
type Store struct {
	Dir     string
	BaseURL string
}

func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes art under the job's directory and returns its download URL.
// The file appears atomically.
func (s *Store) Save(id string, art *ugoira.Artifact) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("invalid job id %q", id)
	}
	name := filepath.Base(art.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid artifact name %q", art.Filename)
	}

	dir := filepath.Join(s.Dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(art.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.URL(id, name), nil
}

// URL is where a saved artifact can be downloaded.
func (s *Store) URL(id, name string) string {
	return s.BaseURL + artifactPrefix + url.PathEscape(id) + "/" + url.PathEscape(name)
}

func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
