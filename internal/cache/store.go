// Package cache holds the per-generation window caches used by the focus
// engine. All maps in a Store share one generation: they are created
// together and cleared together, never entry by entry.
package cache

import (
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// TTL is the maximum age of a cache generation.
const TTL = 10 * time.Minute

// Clock abstracts time so generation expiry can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Map is one mapping of a cache generation.
type Map[K comparable, V any] struct {
	entries map[K]V
}

func newMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{entries: make(map[K]V)}
}

// Get returns the value stored for k, if any.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.entries[k]
	return v, ok
}

// Put stores v under k for the rest of the generation.
func (m *Map[K, V]) Put(k K, v V) {
	m.entries[k] = v
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.entries)
}

func (m *Map[K, V]) clear() {
	m.entries = make(map[K]V)
}

// Store is the set of caches the engine consults before querying the OS.
// It is not safe for concurrent use; the engine goroutine owns it.
type Store struct {
	// Classes maps a handle to its window class
	Classes *Map[window.Handle, string]
	// Eligible maps a handle to its memoized eligibility verdict
	Eligible *Map[window.Handle, bool]
	// Roots maps a handle to its top-level ancestor
	Roots *Map[window.Handle, window.Handle]
	// Pairs maps a cursor-side handle to the foreground handle it is
	// known to be the same logical window as
	Pairs *Map[window.Handle, window.Handle]

	clock   Clock
	ttl     time.Duration
	created time.Time
}

// NewStore starts a new generation using clock (SystemClock when nil).
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock
	}
	s := &Store{
		Classes:  newMap[window.Handle, string](),
		Eligible: newMap[window.Handle, bool](),
		Roots:    newMap[window.Handle, window.Handle](),
		Pairs:    newMap[window.Handle, window.Handle](),
		clock:    clock,
		ttl:      TTL,
	}
	s.created = clock.Now()
	return s
}

// ClearAll discards every map and starts a new generation.
func (s *Store) ClearAll() {
	s.Classes.clear()
	s.Eligible.clear()
	s.Roots.clear()
	s.Pairs.clear()
	s.created = s.clock.Now()
}

// Age returns how long the current generation has existed.
func (s *Store) Age() time.Duration {
	return s.clock.Now().Sub(s.created)
}

// ExpireIfStale clears the store when the generation is older than the TTL
// and reports whether it did.
func (s *Store) ExpireIfStale() bool {
	if s.Age() <= s.ttl {
		return false
	}
	s.ClearAll()
	return true
}

// Stats describes the current generation.
type Stats struct {
	Classes  int           `json:"classes"`
	Eligible int           `json:"eligible"`
	Roots    int           `json:"roots"`
	Pairs    int           `json:"pairs"`
	Age      time.Duration `json:"age_ns"`
	Created  time.Time     `json:"created"`
}

// Snapshot returns the current sizes and generation age.
func (s *Store) Snapshot() Stats {
	return Stats{
		Classes:  s.Classes.Len(),
		Eligible: s.Eligible.Len(),
		Roots:    s.Roots.Len(),
		Pairs:    s.Pairs.Len(),
		Age:      s.Age(),
		Created:  s.created,
	}
}
