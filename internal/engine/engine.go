// Package engine turns pointer events into raise decisions. One goroutine
// runs Run and owns every piece of mutable state (the cache store, the drag
// state, the last pointer position); nothing here is shared with the event
// source except the channel it delivers on.
package engine

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/focusfollows/internal/cache"
	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/external"
	"github.com/bryanchriswhite/focusfollows/internal/input"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

// ErrEventsClosed is returned by Run when the event source stops.
var ErrEventsClosed = errors.New("event stream closed")

// Raiser raises a top-level window.
type Raiser interface {
	Raise(h window.Handle) error
}

// Options configure an Engine.
type Options struct {
	// ExternalSourcePath enables external-list mode when set
	ExternalSourcePath string
	// Rules defaults to classify.Default()
	Rules *classify.RuleSet
	// Clock defaults to the wall clock
	Clock cache.Clock
}

// Engine is the focus-follows-mouse decision loop.
type Engine struct {
	query      window.Query
	raiser     Raiser
	classifier *classify.Classifier
	store      *cache.Store
	clock      cache.Clock
	external   string

	held     map[input.Button]bool
	lastMove window.Point
	moved    bool
	state    State

	clearRequests chan struct{}
	status        *status
}

// New creates an engine reading windows through query and raising through
// raiser.
func New(query window.Query, raiser Raiser, opts Options) (*Engine, error) {
	rules := opts.Rules
	if rules == nil {
		var err error
		if rules, err = classify.Default(); err != nil {
			return nil, err
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = cache.SystemClock
	}

	var lister classify.Lister
	if opts.ExternalSourcePath != "" {
		lister = external.New(opts.ExternalSourcePath)
	}

	e := &Engine{
		query:         query,
		raiser:        raiser,
		classifier:    classify.New(rules, lister),
		store:         cache.NewStore(clock),
		clock:         clock,
		external:      opts.ExternalSourcePath,
		held:          make(map[input.Button]bool),
		clearRequests: make(chan struct{}, 1),
		status:        newStatus(),
	}
	e.publishStats()
	return e, nil
}

// Rules returns the rule set the engine classifies with.
func (e *Engine) Rules() *classify.RuleSet {
	return e.classifier.Rules()
}

// Mode returns "external" when an external window list decides eligibility
// and "heuristic" otherwise.
func (e *Engine) Mode() string {
	if e.classifier.ExternalMode() {
		return "external"
	}
	return "heuristic"
}

// Run processes events one at a time until ctx is done or the event
// channel closes. Per-event failures are logged and never end the loop.
func (e *Engine) Run(ctx context.Context, events <-chan input.Event) error {
	log := logger.WithComponent("engine")
	log.Info().
		Str("mode", e.Mode()).
		Str("external_source", e.external).
		Msg("Focus engine running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clearRequests:
			e.store.ClearAll()
			e.status.cacheCleared()
			e.publishStats()
			log.Info().Msg("Caches cleared on request")
		case ev, ok := <-events:
			if !ok {
				return ErrEventsClosed
			}
			e.Handle(ev)
		}
	}
}

// RequestClear asks the Run loop to clear every cache before the next
// event. It reports false when a request is already pending.
func (e *Engine) RequestClear() bool {
	select {
	case e.clearRequests <- struct{}{}:
		return true
	default:
		return false
	}
}

// Handle processes a single event to completion. Run calls it for each
// event; it is exported so callers can drive the engine synchronously.
func (e *Engine) Handle(ev input.Event) {
	if e.store.ExpireIfStale() {
		e.status.cacheCleared()
		logger.WithComponent("engine").Info().
			Dur("max_age", cache.TTL).
			Msg("Clearing caches, generation expired")
	}

	e.status.event(ev.Kind)

	switch ev.Kind {
	case input.ButtonDown:
		e.held[ev.Button] = true
	case input.ButtonUp:
		delete(e.held, ev.Button)
	case input.Move:
		e.handleMove(ev)
	}

	e.publishStats()
}

// Dragging reports whether a mouse button is held.
func (e *Engine) Dragging() bool {
	return len(e.held) > 0
}

func (e *Engine) handleMove(ev input.Event) {
	log := logger.WithComponent("engine")

	if e.Dragging() {
		return
	}

	// Some sources report a move when focus changes under a still pointer
	if e.moved && ev.Point == e.lastMove {
		return
	}
	e.lastMove, e.moved = ev.Point, true

	e.state = Resolving
	defer func() { e.state = Idle }()

	cursor, err := e.query.WindowAt(ev.Point)
	if err != nil {
		e.drop(ev, "window at cursor unavailable", err)
		return
	}

	foreground, err := e.query.Foreground()
	if err != nil {
		e.drop(ev, "foreground window unavailable", err)
		return
	}

	root, err := e.rootOf(cursor)
	if err != nil {
		e.drop(ev, "root window unavailable", err)
		return
	}

	if root == foreground {
		return
	}

	e.state = Classifying
	d := e.classifier.Evaluate(classify.Request{
		Dragging:   e.Dragging(),
		Cursor:     cursor,
		Root:       root,
		Foreground: foreground,
	}, facts{e})

	if d.Memo != nil {
		e.store.Eligible.Put(cursor, *d.Memo)
	}
	if d.LearnPair {
		e.store.Pairs.Put(cursor, foreground)
	}

	e.state = Deciding
	rec := Decision{
		Time:            e.clock.Now(),
		Point:           ev.Point,
		Cursor:          cursor,
		Root:            root,
		Foreground:      foreground,
		CursorClass:     d.CursorClass,
		ForegroundClass: d.ForegroundClass,
		Outcome:         d.Outcome,
		Reason:          d.Reason,
		Rule:            d.Rule,
	}
	if d.Err != nil {
		rec.Error = d.Err.Error()
	}

	if !d.ShouldRaise() {
		log.Trace().
			Stringer("cursor", cursor).
			Stringer("foreground", foreground).
			Stringer("outcome", d.Outcome).
			Str("reason", d.Reason).
			Str("rule", d.Rule).
			AnErr("cause", d.Err).
			Msg("Not raising")
		if d.Outcome >= classify.Paused {
			e.status.notify(rec)
		}
		return
	}

	e.state = Raising
	if err := e.raiser.Raise(root); err != nil {
		rec.Error = err.Error()
		e.status.raiseFailed()
		log.Error().
			Err(err).
			Stringer("hwnd", root).
			Stringer("cursor", cursor).
			Msg("Failed to raise window")
	} else {
		rec.Raised = true
		e.status.raised()
		log.Info().
			Stringer("hwnd", root).
			Stringer("cursor", cursor).
			Str("class", d.CursorClass).
			Str("reason", d.Reason).
			Msg("Raised window")
	}
	e.status.notify(rec)
}

func (e *Engine) drop(ev input.Event, reason string, err error) {
	e.status.dropped()
	logger.WithComponent("engine").Trace().
		Err(err).
		Int("x", ev.Point.X).
		Int("y", ev.Point.Y).
		Msg(reason)
}

func (e *Engine) rootOf(h window.Handle) (window.Handle, error) {
	if root, ok := e.store.Roots.Get(h); ok {
		return root, nil
	}
	root, err := e.query.Root(h)
	if err != nil {
		return 0, err
	}
	e.store.Roots.Put(h, root)
	return root, nil
}

func (e *Engine) publishStats() {
	e.status.update(e.state, e.Dragging(), e.store.Snapshot())
}

// facts serves classifier lookups from the cache store, querying the OS on
// a miss. Failed queries are never cached.
type facts struct {
	e *Engine
}

func (f facts) Class(h window.Handle) (string, error) {
	if class, ok := f.e.store.Classes.Get(h); ok {
		return class, nil
	}
	class, err := f.e.query.ClassName(h)
	if err != nil {
		return "", err
	}
	f.e.store.Classes.Put(h, class)
	return class, nil
}

func (f facts) Style(h window.Handle) (window.Style, error) {
	return f.e.query.Style(h)
}

func (f facts) Pair(h window.Handle) (window.Handle, bool) {
	return f.e.store.Pairs.Get(h)
}

func (f facts) Memo(h window.Handle) (bool, bool) {
	return f.e.store.Eligible.Get(h)
}

// CacheStats returns the current cache sizes. It must only be called from
// the goroutine driving the engine; other goroutines use Snapshot.
func (e *Engine) CacheStats() cache.Stats {
	return e.store.Snapshot()
}
