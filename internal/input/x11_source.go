package input

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/bryanchriswhite/focusfollows/internal/window"
)

func init() {
	Register("x11", func(opts Options) (Source, error) {
		return NewX11Source(opts.PollInterval)
	})
}

// DefaultPollInterval is how often the X11 source samples the pointer.
const DefaultPollInterval = 20 * time.Millisecond

var x11Buttons = []struct {
	mask   uint16
	button Button
}{
	{xproto.KeyButMaskButton1, ButtonLeft},
	{xproto.KeyButMaskButton2, ButtonMiddle},
	{xproto.KeyButMaskButton3, ButtonRight},
}

// X11Source samples the pointer with QueryPointer on its own connection
type X11Source struct {
	conn     *xgb.Conn
	root     xproto.Window
	interval time.Duration
}

// NewX11Source connects to the X server
func NewX11Source(interval time.Duration) (*X11Source, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &X11Source{
		conn:     conn,
		root:     xproto.Setup(conn).DefaultScreen(conn).Root,
		interval: interval,
	}, nil
}

// Name returns the source name
func (s *X11Source) Name() string {
	return "x11"
}

// Events starts polling. The connection is closed when ctx is done.
func (s *X11Source) Events(ctx context.Context) (<-chan Event, error) {
	// Fail early if the pointer cannot be queried at all
	first, err := xproto.QueryPointer(s.conn, s.root).Reply()
	if err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("failed to query pointer: %w", err)
	}

	events := make(chan Event, QueueSize)
	go s.poll(ctx, events, pointerSample{X: first.RootX, Y: first.RootY, Mask: first.Mask})
	return events, nil
}

func (s *X11Source) poll(ctx context.Context, events chan<- Event, last pointerSample) {
	log := logger.WithComponent("x11-input")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(events)
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reply, err := xproto.QueryPointer(s.conn, s.root).Reply()
		if err != nil {
			log.Debug().Err(err).Msg("Failed to query pointer")
			continue
		}

		cur := pointerSample{X: reply.RootX, Y: reply.RootY, Mask: reply.Mask}
		for _, ev := range pointerEvents(last, cur, time.Now()) {
			if !send(ctx, events, ev) {
				return
			}
		}

		last = cur
	}
}

// pointerSample is the part of a QueryPointer reply that produces events
type pointerSample struct {
	X, Y int16
	Mask uint16
}

// pointerEvents diffs two samples. Button transitions go first so a press
// at a new position is seen before the move that follows it.
func pointerEvents(last, cur pointerSample, now time.Time) []Event {
	var events []Event
	pt := window.Point{X: int(cur.X), Y: int(cur.Y)}

	for _, b := range x11Buttons {
		was := last.Mask&b.mask != 0
		is := cur.Mask&b.mask != 0
		if was == is {
			continue
		}
		kind := ButtonUp
		if is {
			kind = ButtonDown
		}
		events = append(events, Event{Kind: kind, Point: pt, Button: b.button, Time: now})
	}

	if cur.X != last.X || cur.Y != last.Y {
		events = append(events, Event{Kind: Move, Point: pt, Time: now})
	}
	return events
}

// send blocks until the consumer takes ev or ctx is done
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
