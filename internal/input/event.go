// Package input turns native pointer activity into a single ordered stream
// of Events. Each platform source runs its own delivery goroutine and hands
// events to one consumer over a channel.
package input

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// Kind is the type of a pointer event
type Kind int

const (
	Move Kind = iota
	ButtonDown
	ButtonUp
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case ButtonDown:
		return "button-down"
	case ButtonUp:
		return "button-up"
	default:
		return "unknown"
	}
}

// Button identifies a mouse button
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
	ButtonX
)

// Event is one pointer event. Point is set for every kind.
type Event struct {
	Kind   Kind
	Point  window.Point
	Button Button
	Time   time.Time
}

// QueueSize is the buffer between a source's delivery goroutine and the
// consumer.
const QueueSize = 256

// ButtonSendTimeout bounds how long a source that must not block, such as
// a low-level hook callback, waits to queue a button transition.
const ButtonSendTimeout = 50 * time.Millisecond

// deliver queues ev without blocking the caller for long. Moves are sampled:
// when the consumer falls behind, newer moves supersede the dropped ones.
// Button transitions wait up to timeout. It reports whether ev was queued.
func deliver(events chan<- Event, ev Event, timeout time.Duration) bool {
	if ev.Kind == Move {
		select {
		case events <- ev:
			return true
		default:
			return false
		}
	}

	select {
	case events <- ev:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case events <- ev:
		return true
	case <-timer.C:
		return false
	}
}

// Source produces pointer events until ctx is cancelled, then closes the
// channel.
type Source interface {
	Events(ctx context.Context) (<-chan Event, error)
	Name() string
}

// Options configure event sources
type Options struct {
	// PollInterval is used by sources that sample the pointer
	PollInterval time.Duration
}

// Opener creates a source
type Opener func(opts Options) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// Register makes a source available under name
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = open
}

// Available returns the registered source names in sorted order
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

// Open creates the source matching a window backend name. An empty name or
// "auto" selects the platform default.
func Open(name string, opts Options) (Source, error) {
	if name == "" || name == "auto" {
		name = window.DefaultBackend()
	}

	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("input source %q: %w", name, window.ErrUnsupported)
	}
	return open(opts)
}
