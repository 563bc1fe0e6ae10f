//go:build windows

package input

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/bryanchriswhite/focusfollows/internal/window"
	"golang.org/x/sys/windows"
)

func init() {
	Register("windows", func(opts Options) (Source, error) {
		return NewWindowsSource(), nil
	})
}

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whMouseLL = 14
	wmQuit    = 0x0012

	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
)

// msllHookStruct mirrors MSLLHOOKSTRUCT
type msllHookStruct struct {
	x, y      int32
	mouseData uint32
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// msg mirrors MSG
type msg struct {
	hwnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	x, y     int32
	lPrivate uint32
}

var errHookActive = errors.New("a mouse hook is already installed")

// The hook callback is a process-wide function, so the active source is too.
var (
	hookMu     sync.Mutex
	hookEvents chan<- Event
	hookProc   = syscall.NewCallback(lowLevelMouseProc)
)

// WindowsSource delivers events from a WH_MOUSE_LL hook
type WindowsSource struct{}

// NewWindowsSource creates a source; the hook is installed by Events
func NewWindowsSource() *WindowsSource {
	return &WindowsSource{}
}

// Name returns the source name
func (s *WindowsSource) Name() string {
	return "windows"
}

// Events installs the hook on a dedicated OS thread and pumps its message
// loop until ctx is done.
func (s *WindowsSource) Events(ctx context.Context) (<-chan Event, error) {
	hookMu.Lock()
	if hookEvents != nil {
		hookMu.Unlock()
		return nil, errHookActive
	}
	events := make(chan Event, QueueSize)
	hookEvents = events
	hookMu.Unlock()

	ready := make(chan error, 1)
	go s.pump(ctx, events, ready)

	if err := <-ready; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *WindowsSource) pump(ctx context.Context, events chan Event, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := logger.WithComponent("windows-input")

	release := func() {
		hookMu.Lock()
		hookEvents = nil
		hookMu.Unlock()
		close(events)
	}

	hook, _, errno := procSetWindowsHookExW.Call(whMouseLL, hookProc, 0, 0)
	if hook == 0 {
		release()
		ready <- fmt.Errorf("failed to install mouse hook: %v", errno)
		return
	}
	defer release()
	defer procUnhookWindowsHookEx.Call(hook)

	tid := windows.GetCurrentThreadId()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
		case <-done:
		}
	}()

	ready <- nil
	log.Debug().Msg("Mouse hook installed")

	var m msg
	for {
		r, _, errno := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case 0:
			return
		case -1:
			log.Error().Err(errno).Msg("GetMessageW failed")
			return
		}
	}
}

func lowLevelMouseProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		info := (*msllHookStruct)(unsafe.Pointer(lParam))
		dispatch(wParam, window.Point{X: int(info.x), Y: int(info.y)})
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

func dispatch(message uintptr, pt window.Point) {
	ev := Event{Point: pt, Time: time.Now()}

	switch message {
	case wmMouseMove:
		ev.Kind = Move
	case wmLButtonDown:
		ev.Kind, ev.Button = ButtonDown, ButtonLeft
	case wmLButtonUp:
		ev.Kind, ev.Button = ButtonUp, ButtonLeft
	case wmRButtonDown:
		ev.Kind, ev.Button = ButtonDown, ButtonRight
	case wmRButtonUp:
		ev.Kind, ev.Button = ButtonUp, ButtonRight
	case wmMButtonDown:
		ev.Kind, ev.Button = ButtonDown, ButtonMiddle
	case wmMButtonUp:
		ev.Kind, ev.Button = ButtonUp, ButtonMiddle
	case wmXButtonDown:
		ev.Kind, ev.Button = ButtonDown, ButtonX
	case wmXButtonUp:
		ev.Kind, ev.Button = ButtonUp, ButtonX
	default:
		return
	}

	hookMu.Lock()
	events := hookEvents
	hookMu.Unlock()
	if events == nil {
		return
	}

	// The hook runs on the message loop thread and Windows unhooks slow
	// callbacks, so a stalled consumer can cost a button transition
	if !deliver(events, ev, ButtonSendTimeout) && ev.Kind != Move {
		logger.WithComponent("windows-input").Warn().
			Stringer("kind", ev.Kind).
			Int("button", int(ev.Button)).
			Msg("Event queue full, dropped button transition")
	}
}
