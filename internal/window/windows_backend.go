//go:build windows

package window

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

func init() {
	Register("windows", func() (Backend, error) {
		return NewWindowsBackend()
	})
}

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procWindowFromPoint     = user32.NewProc("WindowFromPoint")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procGetAncestor         = user32.NewProc("GetAncestor")
	procRealGetWindowClassW = user32.NewProc("RealGetWindowClassW")
	procGetWindowLongPtrW   = user32.NewProc("GetWindowLongPtrW")
	procSendInput           = user32.NewProc("SendInput")
	procSetWindowPos        = user32.NewProc("SetWindowPos")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
)

const (
	gaRoot = 2

	gwlExStyle = -20

	wsExToolWindow = 0x00000080
	wsExNoActivate = 0x08000000

	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpShowWindow = 0x0040

	hwndTop = 0

	inputMouse = 0

	classNameBufSize = 512
)

// mouseInput mirrors MOUSEINPUT
type mouseInput struct {
	dx        int32
	dy        int32
	mouseData uint32
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// input mirrors INPUT with the mouse member of the union
type input struct {
	typ uint32
	mi  mouseInput
}

// WindowsBackend implements the Backend interface using user32
type WindowsBackend struct{}

// NewWindowsBackend loads user32 and returns a backend
func NewWindowsBackend() (*WindowsBackend, error) {
	if err := user32.Load(); err != nil {
		return nil, fmt.Errorf("failed to load user32.dll: %w", err)
	}
	return &WindowsBackend{}, nil
}

// Name returns the backend name
func (b *WindowsBackend) Name() string {
	return "windows"
}

// Close is a no-op; user32 stays loaded for the life of the process
func (b *WindowsBackend) Close() error {
	return nil
}

// lastError turns the errno captured by LazyProc.Call into an error,
// falling back to ErrNoWindow when the OS did not set one.
func lastError(call string, errno error) error {
	if en, ok := errno.(syscall.Errno); ok && en != 0 {
		return fmt.Errorf("%s: %w", call, en)
	}
	return fmt.Errorf("%s: %w", call, ErrNoWindow)
}

// WindowAt calls WindowFromPoint. POINT is passed by value, which on 64-bit
// targets means packed into a single register.
func (b *WindowsBackend) WindowAt(p Point) (Handle, error) {
	packed := uintptr(uint32(int32(p.X))) | uintptr(uint32(int32(p.Y)))<<32
	r, _, errno := procWindowFromPoint.Call(packed)
	if r == 0 {
		return 0, lastError("WindowFromPoint", errno)
	}
	return Handle(r), nil
}

// Foreground calls GetForegroundWindow
func (b *WindowsBackend) Foreground() (Handle, error) {
	r, _, errno := procGetForegroundWindow.Call()
	if r == 0 {
		return 0, lastError("GetForegroundWindow", errno)
	}
	return Handle(r), nil
}

// Root calls GetAncestor with GA_ROOT
func (b *WindowsBackend) Root(h Handle) (Handle, error) {
	r, _, errno := procGetAncestor.Call(uintptr(h), gaRoot)
	if r == 0 {
		return 0, lastError("GetAncestor", errno)
	}
	return Handle(r), nil
}

// ClassName calls RealGetWindowClassW
func (b *WindowsBackend) ClassName(h Handle) (string, error) {
	var buf [classNameBufSize]uint16
	r, _, errno := procRealGetWindowClassW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r == 0 {
		return "", lastError("RealGetWindowClassW", errno)
	}
	return windows.UTF16ToString(buf[:r]), nil
}

// Style reads GWL_EXSTYLE and maps the tool-window and no-activate bits
func (b *WindowsBackend) Style(h Handle) (Style, error) {
	idx := gwlExStyle
	r, _, errno := procGetWindowLongPtrW.Call(uintptr(h), uintptr(idx))
	if r == 0 {
		// A zero extended style is legal, so only a set errno is a failure
		if en, ok := errno.(syscall.Errno); ok && en != 0 {
			return 0, fmt.Errorf("GetWindowLongPtrW: %w", en)
		}
		return 0, nil
	}

	var style Style
	if r&wsExToolWindow != 0 {
		style |= StyleToolWindow
	}
	if r&wsExNoActivate != 0 {
		style |= StyleNoActivate
	}
	return style, nil
}

// InjectSelfInput sends an empty mouse INPUT so this process passes the
// foreground lock check
func (b *WindowsBackend) InjectSelfInput() error {
	in := input{typ: inputMouse}
	r, _, errno := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if r == 0 {
		return lastError("SendInput", errno)
	}
	return nil
}

// SetTopNoMove calls SetWindowPos(HWND_TOP) without moving or resizing
func (b *WindowsBackend) SetTopNoMove(h Handle) error {
	r, _, errno := procSetWindowPos.Call(
		uintptr(h),
		hwndTop,
		0, 0, 0, 0,
		swpNoMove|swpNoSize|swpShowWindow,
	)
	if r == 0 {
		return lastError("SetWindowPos", errno)
	}
	return nil
}

// SetForeground calls SetForegroundWindow
func (b *WindowsBackend) SetForeground(h Handle) error {
	r, _, errno := procSetForegroundWindow.Call(uintptr(h))
	if r == 0 {
		return lastError("SetForegroundWindow", errno)
	}
	return nil
}
