package commands

import (
	"errors"
	"testing"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

type stubQuery struct {
	cursor     window.Handle
	foreground window.Handle
	roots      map[window.Handle]window.Handle
	classes    map[window.Handle]string
}

func (q stubQuery) WindowAt(window.Point) (window.Handle, error) {
	if q.cursor == 0 {
		return 0, window.ErrNoWindow
	}
	return q.cursor, nil
}

func (q stubQuery) Foreground() (window.Handle, error) { return q.foreground, nil }

func (q stubQuery) Root(h window.Handle) (window.Handle, error) {
	if root, ok := q.roots[h]; ok {
		return root, nil
	}
	return h, nil
}

func (q stubQuery) ClassName(h window.Handle) (string, error) {
	if class, ok := q.classes[h]; ok {
		return class, nil
	}
	return "", errors.New("gone")
}

func (q stubQuery) Style(window.Handle) (window.Style, error) { return 0, nil }

func TestInspect(t *testing.T) {
	rules, err := classify.Default()
	if err != nil {
		t.Fatal(err)
	}
	c := classify.New(rules, nil)

	q := stubQuery{
		cursor:     0x10,
		foreground: 0x20,
		roots:      map[window.Handle]window.Handle{0x10: 0x11},
		classes: map[window.Handle]string{
			0x10: "Edit",
			0x11: "Notepad",
			0x20: "Shell_TrayWnd",
		},
	}

	out, err := inspect(q, c, window.Point{X: 3, Y: 4})
	if err != nil {
		t.Fatalf("inspect() error = %v", err)
	}
	if out.Root != 0x11 || out.RootClass != "Notepad" || out.RootStyle != "normal" {
		t.Errorf("root = %v %q %q", out.Root, out.RootClass, out.RootStyle)
	}
	if out.Outcome != "eligible" || !out.Raise {
		t.Errorf("outcome = %q raise = %v, want eligible", out.Outcome, out.Raise)
	}
	if out.ForegroundClass != "Shell_TrayWnd" {
		t.Errorf("ForegroundClass = %q", out.ForegroundClass)
	}

	q.cursor = 0
	if _, err := inspect(q, c, window.Point{}); !errors.Is(err, window.ErrNoWindow) {
		t.Errorf("inspect() error = %v, want ErrNoWindow", err)
	}
}
