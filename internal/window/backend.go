package window

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// Query answers questions about native windows. Every method may fail when
// the window is gone or access is denied.
type Query interface {
	// WindowAt returns the deepest window under the given screen point
	WindowAt(p Point) (Handle, error)

	// Foreground returns the window that currently owns input focus
	Foreground() (Handle, error)

	// Root returns the top-level ancestor of h (h itself if it is top-level)
	Root(h Handle) (Handle, error)

	// ClassName returns the window class of h
	ClassName(h Handle) (string, error)

	// Style returns the classifier-relevant style bits of h
	Style(h Handle) (Style, error)
}

// Primitives are the mutating calls the Raiser is built from.
type Primitives interface {
	// InjectSelfInput sends a no-op input event to the calling process so the
	// OS treats it as having received input recently.
	InjectSelfInput() error

	// SetTopNoMove moves h to the top of the Z-order without moving or resizing it
	SetTopNoMove(h Handle) error

	// SetForeground transfers input focus to h
	SetForeground(h Handle) error
}

// Backend is a connection to a windowing system.
type Backend interface {
	Query
	Primitives

	// Name returns the backend name (e.g., "x11", "windows")
	Name() string

	// Close releases the connection
	Close() error
}

// Opener creates a backend.
type Opener func() (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// Register makes a backend available under name. Platform files call it
// from init().
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = open
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend returns the backend name used for "auto" on this platform.
func DefaultBackend() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "x11"
}

// Open connects to the named backend. An empty name or "auto" selects the
// platform default.
func Open(name string) (Backend, error) {
	if name == "" || name == "auto" {
		name = DefaultBackend()
	}

	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend %q: %w", name, ErrUnsupported)
	}

	b, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", name, err)
	}
	return b, nil
}
