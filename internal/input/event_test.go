package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/window"
)

type stubSource struct{}

func (stubSource) Events(ctx context.Context) (<-chan Event, error) { return nil, nil }
func (stubSource) Name() string { return "stub" }

func TestOpen(t *testing.T) {
	var got Options
	Register("stub", func(opts Options) (Source, error) {
		got = opts
		return stubSource{}, nil
	})

	src, err := Open("stub", Options{PollInterval: DefaultPollInterval})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if src.Name() != "stub" || got.PollInterval != DefaultPollInterval {
		t.Errorf("Open() = %v with %+v", src.Name(), got)
	}

	found := false
	for _, name := range Available() {
		found = found || name == "stub"
	}
	if !found {
		t.Errorf("Available() = %v, want stub listed", Available())
	}

	if _, err := Open("no-such-source", Options{}); !errors.Is(err, window.ErrUnsupported) {
		t.Errorf("Open() error = %v, want ErrUnsupported", err)
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Move:       "move",
		ButtonDown: "button-down",
		ButtonUp:   "button-up",
		Kind(99):   "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}

func TestDeliver(t *testing.T) {
	move := Event{Kind: Move}
	down := Event{Kind: ButtonDown, Button: ButtonLeft}

	t.Run("queues when there is room", func(t *testing.T) {
		events := make(chan Event, 2)
		if !deliver(events, move, time.Second) || !deliver(events, down, time.Second) {
			t.Fatal("deliver() = false with room in the queue")
		}
		if got := (<-events).Kind; got != Move {
			t.Errorf("first event = %s, want move", got)
		}
		if got := (<-events).Kind; got != ButtonDown {
			t.Errorf("second event = %s, want button-down", got)
		}
	})

	t.Run("drops moves on a full queue", func(t *testing.T) {
		events := make(chan Event, 1)
		events <- down
		start := time.Now()
		if deliver(events, move, time.Second) {
			t.Fatal("deliver() = true on a full queue")
		}
		if waited := time.Since(start); waited > 500*time.Millisecond {
			t.Errorf("move waited %v", waited)
		}
	})

	t.Run("button gives up after timeout", func(t *testing.T) {
		events := make(chan Event, 1)
		events <- move
		start := time.Now()
		if deliver(events, down, 20*time.Millisecond) {
			t.Fatal("deliver() = true on a stalled queue")
		}
		if waited := time.Since(start); waited < 20*time.Millisecond {
			t.Errorf("button gave up after %v", waited)
		}
	})

	t.Run("button waits for a slow consumer", func(t *testing.T) {
		events := make(chan Event, 1)
		events <- move
		go func() {
			time.Sleep(10 * time.Millisecond)
			<-events
		}()
		if !deliver(events, down, time.Second) {
			t.Fatal("deliver() = false though the consumer caught up")
		}
		if got := (<-events).Kind; got != ButtonDown {
			t.Errorf("queued event = %s, want button-down", got)
		}
	})
}
