package engine

import (
	"errors"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/input"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

var errQuery = errors.New("query failed")

// fakeDesktop is an in-memory window system. Any point maps to the same
// cursor window unless a point is listed in at.
type fakeDesktop struct {
	cursor     window.Handle
	at         map[window.Point]window.Handle
	foreground window.Handle
	roots      map[window.Handle]window.Handle
	classes    map[window.Handle]string
	styles     map[window.Handle]window.Style

	failWindowAt   bool
	failForeground bool
	failStyle      bool

	windowAtCalls int
	rootCalls     int
	classCalls    int
	styleCalls    int
}

func newFakeDesktop() *fakeDesktop {
	return &fakeDesktop{
		at:      map[window.Point]window.Handle{},
		roots:   map[window.Handle]window.Handle{},
		classes: map[window.Handle]string{},
		styles:  map[window.Handle]window.Style{},
	}
}

// addWindow registers a top-level window with its own class and style
func (d *fakeDesktop) addWindow(h window.Handle, class string, style window.Style) {
	d.roots[h] = h
	d.classes[h] = class
	d.styles[h] = style
}

// addChild registers a child control inside root
func (d *fakeDesktop) addChild(h, root window.Handle, class string) {
	d.roots[h] = root
	d.classes[h] = class
}

func (d *fakeDesktop) WindowAt(p window.Point) (window.Handle, error) {
	d.windowAtCalls++
	if d.failWindowAt {
		return 0, errQuery
	}
	if h, ok := d.at[p]; ok {
		return h, nil
	}
	if d.cursor == 0 {
		return 0, window.ErrNoWindow
	}
	return d.cursor, nil
}

func (d *fakeDesktop) Foreground() (window.Handle, error) {
	if d.failForeground || d.foreground == 0 {
		return 0, errQuery
	}
	return d.foreground, nil
}

func (d *fakeDesktop) Root(h window.Handle) (window.Handle, error) {
	d.rootCalls++
	root, ok := d.roots[h]
	if !ok {
		return 0, errQuery
	}
	return root, nil
}

func (d *fakeDesktop) ClassName(h window.Handle) (string, error) {
	d.classCalls++
	class, ok := d.classes[h]
	if !ok {
		return "", errQuery
	}
	return class, nil
}

func (d *fakeDesktop) Style(h window.Handle) (window.Style, error) {
	d.styleCalls++
	if d.failStyle {
		return 0, errQuery
	}
	style, ok := d.styles[h]
	if !ok {
		return 0, errQuery
	}
	return style, nil
}

type fakeRaiser struct {
	raised []window.Handle
	err    error
}

func (r *fakeRaiser) Raise(h window.Handle) error {
	r.raised = append(r.raised, h)
	return r.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// mover produces move events at distinct points so position dedupe never
// swallows them
type mover struct {
	x int
}

func (m *mover) next() input.Event {
	m.x++
	return input.Event{Kind: input.Move, Point: window.Point{X: m.x, Y: 100}}
}

func press(b input.Button) input.Event {
	return input.Event{Kind: input.ButtonDown, Button: b}
}

func release(b input.Button) input.Event {
	return input.Event{Kind: input.ButtonUp, Button: b}
}
