package window

import (
	"errors"
	"fmt"
	"strconv"
)

// Handle identifies a native window (an HWND on Windows, an XID on X11).
// It is a plain value: the window it names may disappear at any time, so
// every use goes through a fallible Query call.
type Handle uint64

// String formats the handle in hex, which is how window tools print them.
func (h Handle) String() string {
	return fmt.Sprintf("%#x", uint64(h))
}

// MarshalText renders handles in hex in JSON and YAML.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Decimal returns the decimal form of the handle.
func (h Handle) Decimal() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Point is a position in screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Style is the subset of native window style bits the classifier cares about.
type Style uint32

const (
	// StyleToolWindow marks floating palettes, docks, panels and similar
	// surfaces that are not meant to own focus.
	StyleToolWindow Style = 1 << iota
	// StyleNoActivate marks windows that refuse activation.
	StyleNoActivate
)

// Has reports whether any of the bits in flag are set.
func (s Style) Has(flag Style) bool {
	return s&flag != 0
}

func (s Style) String() string {
	switch {
	case s.Has(StyleToolWindow) && s.Has(StyleNoActivate):
		return "toolwindow|noactivate"
	case s.Has(StyleToolWindow):
		return "toolwindow"
	case s.Has(StyleNoActivate):
		return "noactivate"
	default:
		return "normal"
	}
}

var (
	// ErrNoWindow is returned when a query resolves to no window at all.
	ErrNoWindow = errors.New("no window")

	// ErrUnsupported is returned when a backend is not available on this platform.
	ErrUnsupported = errors.New("window backend not supported on this platform")
)
