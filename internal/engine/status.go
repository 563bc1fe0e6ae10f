package engine

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/cache"
	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/input"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// State is the phase the engine is in while handling a move event.
type State int

const (
	Idle State = iota
	Resolving
	Classifying
	Deciding
	Raising
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Classifying:
		return "classifying"
	case Deciding:
		return "deciding"
	case Raising:
		return "raising"
	default:
		return "unknown"
	}
}

// MarshalText renders states by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decision records one classified move event.
type Decision struct {
	Time            time.Time        `json:"time"`
	Point           window.Point     `json:"point"`
	Cursor          window.Handle    `json:"cursor"`
	Root            window.Handle    `json:"root"`
	Foreground      window.Handle    `json:"foreground"`
	CursorClass     string           `json:"cursor_class,omitempty"`
	ForegroundClass string           `json:"foreground_class,omitempty"`
	Outcome         classify.Outcome `json:"outcome"`
	Reason          string           `json:"reason"`
	Rule            string           `json:"rule,omitempty"`
	Raised          bool             `json:"raised"`
	Error           string           `json:"error,omitempty"`
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	State         State       `json:"state"`
	Dragging      bool        `json:"dragging"`
	Moves         uint64      `json:"moves"`
	Buttons       uint64      `json:"buttons"`
	Dropped       uint64      `json:"dropped"`
	Raises        uint64      `json:"raises"`
	RaiseFailures uint64      `json:"raise_failures"`
	CacheClears   uint64      `json:"cache_clears"`
	Cache         cache.Stats `json:"cache"`
	LastDecision  *Decision   `json:"last_decision,omitempty"`
}

// status is the only engine state other goroutines may read. The engine
// goroutine writes it; readers get copies.
type status struct {
	mu        sync.RWMutex
	stats     Stats
	listeners []chan Decision
}

func newStatus() *status {
	return &status{listeners: make([]chan Decision, 0)}
}

func (s *status) event(kind input.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == input.Move {
		s.stats.Moves++
	} else {
		s.stats.Buttons++
	}
}

func (s *status) dropped() {
	s.mu.Lock()
	s.stats.Dropped++
	s.mu.Unlock()
}

func (s *status) raised() {
	s.mu.Lock()
	s.stats.Raises++
	s.mu.Unlock()
}

func (s *status) raiseFailed() {
	s.mu.Lock()
	s.stats.RaiseFailures++
	s.mu.Unlock()
}

func (s *status) cacheCleared() {
	s.mu.Lock()
	s.stats.CacheClears++
	s.mu.Unlock()
}

func (s *status) update(state State, dragging bool, cs cache.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.State = state
	s.stats.Dragging = dragging
	s.stats.Cache = cs
}

// notify records d and delivers it to every listener
func (s *status) notify(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.LastDecision = &d
	for _, listener := range s.listeners {
		select {
		case listener <- d:
		default:
			// Skip if channel is full
		}
	}
}

// Snapshot returns a copy of the engine counters. Safe for any goroutine.
func (e *Engine) Snapshot() Stats {
	e.status.mu.RLock()
	defer e.status.mu.RUnlock()

	stats := e.status.stats
	if stats.LastDecision != nil {
		d := *stats.LastDecision
		stats.LastDecision = &d
	}
	return stats
}

// Subscribe adds a listener for decisions
func (e *Engine) Subscribe() chan Decision {
	ch := make(chan Decision, 16)
	e.status.mu.Lock()
	e.status.listeners = append(e.status.listeners, ch)
	e.status.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener
func (e *Engine) Unsubscribe(ch chan Decision) {
	e.status.mu.Lock()
	defer e.status.mu.Unlock()

	for i, listener := range e.status.listeners {
		if listener == ch {
			e.status.listeners = append(e.status.listeners[:i], e.status.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}
