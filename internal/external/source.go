// Package external reads the list of windows an external window manager
// considers managed (for example komorebi's komorebi.hwnd.json).
package external

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// Source is a file whose text contains the decimal or hexadecimal form of
// every currently eligible handle. No schema is assumed: a handle is listed
// when its textual form appears anywhere in the file.
type Source struct {
	path string
}

// New returns a Source reading path. The file does not have to exist yet.
func New(path string) *Source {
	return &Source{path: path}
}

// Path returns the file the source reads.
func (s *Source) Path() string {
	return s.path
}

// Load reads the file once. Callers check several handles against one Load
// so a single classification attempt costs one read.
func (s *Source) Load() (List, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return List{}, fmt.Errorf("failed to read external window list: %w", err)
	}
	return List{text: strings.ToLower(string(data))}, nil
}

// List is the content of one read of the source.
type List struct {
	text string
}

// Contains reports whether h appears in the list in decimal or hex form.
func (l List) Contains(h window.Handle) bool {
	if h == 0 {
		return false
	}
	return strings.Contains(l.text, h.Decimal()) || strings.Contains(l.text, strings.ToLower(h.String()))
}

// DefaultPath returns komorebi's handle list under the local data directory,
// or "" when it is not a regular file.
func DefaultPath() string {
	dir := localDataDir()
	if dir == "" {
		return ""
	}

	path := filepath.Join(dir, "komorebi", "komorebi.hwnd.json")
	if !IsFile(path) {
		return ""
	}
	return path
}

// IsFile reports whether path names an existing regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func localDataDir() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return dir
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share")
}
