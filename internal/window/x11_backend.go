package window

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
)

func init() {
	Register("x11", func() (Backend, error) {
		return NewX11Backend()
	})
}

// maxTreeDepth bounds pointer descent and ancestor walks.
const maxTreeDepth = 64

// Window types that behave like Win32 tool windows: panels, palettes, menus
// and notifications.
var x11ToolWindowTypes = []string{
	"_NET_WM_WINDOW_TYPE_DESKTOP",
	"_NET_WM_WINDOW_TYPE_DOCK",
	"_NET_WM_WINDOW_TYPE_TOOLBAR",
	"_NET_WM_WINDOW_TYPE_MENU",
	"_NET_WM_WINDOW_TYPE_UTILITY",
	"_NET_WM_WINDOW_TYPE_SPLASH",
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU",
	"_NET_WM_WINDOW_TYPE_POPUP_MENU",
	"_NET_WM_WINDOW_TYPE_TOOLTIP",
	"_NET_WM_WINDOW_TYPE_NOTIFICATION",
}

// X11Backend implements the Backend interface using X11
type X11Backend struct {
	conn *xgb.Conn
	root xproto.Window

	activeWindowAtom xproto.Atom
	wmClassAtom      xproto.Atom
	wmStateAtom      xproto.Atom
	windowTypeAtom   xproto.Atom
	toolWindowTypes  map[xproto.Atom]bool

	// ewmh is true when a compliant window manager is running
	ewmh bool
	// xtest is true when the XTEST extension could be initialized
	xtest bool
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	b := &X11Backend{
		conn:            conn,
		root:            xproto.Setup(conn).DefaultScreen(conn).Root,
		toolWindowTypes: make(map[xproto.Atom]bool),
	}

	if err := b.internAtoms(); err != nil {
		conn.Close()
		return nil, err
	}

	log := logger.WithComponent("x11-backend")

	if err := xtest.Init(conn); err != nil {
		log.Warn().Err(err).Msg("XTEST unavailable, self input injection disabled")
	} else {
		b.xtest = true
	}

	checkAtom, err := b.getAtom("_NET_SUPPORTING_WM_CHECK")
	if err == nil {
		if _, err := b.getWindowProperty(b.root, checkAtom); err == nil {
			b.ewmh = true
		}
	}

	log.Debug().
		Bool("ewmh", b.ewmh).
		Bool("xtest", b.xtest).
		Uint32("root", uint32(b.root)).
		Msg("Connected to X server")

	return b, nil
}

func (b *X11Backend) internAtoms() error {
	var err error
	if b.activeWindowAtom, err = b.getAtom("_NET_ACTIVE_WINDOW"); err != nil {
		return err
	}
	if b.wmClassAtom, err = b.getAtom("WM_CLASS"); err != nil {
		return err
	}
	if b.wmStateAtom, err = b.getAtom("WM_STATE"); err != nil {
		return err
	}
	if b.windowTypeAtom, err = b.getAtom("_NET_WM_WINDOW_TYPE"); err != nil {
		return err
	}
	for _, name := range x11ToolWindowTypes {
		atom, err := b.getAtom(name)
		if err != nil {
			return err
		}
		b.toolWindowTypes[atom] = true
	}
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// WindowAt descends from the root window to the deepest child containing p
func (b *X11Backend) WindowAt(p Point) (Handle, error) {
	win := b.root
	for depth := 0; depth < maxTreeDepth; depth++ {
		reply, err := xproto.TranslateCoordinates(b.conn, b.root, win, int16(p.X), int16(p.Y)).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to translate coordinates: %w", err)
		}
		if reply.Child == xproto.WindowNone {
			break
		}
		win = reply.Child
	}

	if win == b.root {
		return 0, ErrNoWindow
	}
	return Handle(win), nil
}

// Foreground returns _NET_ACTIVE_WINDOW, falling back to the input focus
func (b *X11Backend) Foreground() (Handle, error) {
	if active, err := b.getWindowProperty(b.root, b.activeWindowAtom); err == nil && active != xproto.WindowNone {
		return Handle(active), nil
	}

	reply, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get input focus: %w", err)
	}

	// 0 is None and 1 is PointerRoot
	if reply.Focus <= 1 || reply.Focus == b.root {
		return 0, ErrNoWindow
	}
	return Handle(reply.Focus), nil
}

// Root returns the outermost ancestor of h that the window manager treats as
// a client (it carries WM_STATE). Reparenting window managers wrap clients
// in frames, so the child of the root window is usually not the client.
func (b *X11Backend) Root(h Handle) (Handle, error) {
	win := xproto.Window(h)
	if win == b.root || win == xproto.WindowNone {
		return 0, ErrNoWindow
	}

	chain := []xproto.Window{win}
	for depth := 0; depth < maxTreeDepth; depth++ {
		tree, err := xproto.QueryTree(b.conn, win).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to query tree for %s: %w", Handle(win), err)
		}
		if tree.Parent == b.root || tree.Parent == xproto.WindowNone {
			break
		}
		win = tree.Parent
		chain = append(chain, win)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		if b.hasProperty(chain[i], b.wmStateAtom) {
			return Handle(chain[i]), nil
		}
	}
	return Handle(chain[len(chain)-1]), nil
}

// ClassName returns the class part of WM_CLASS
func (b *X11Backend) ClassName(h Handle) (string, error) {
	raw, err := b.getProperty(xproto.Window(h), b.wmClassAtom)
	if err != nil {
		return "", err
	}

	// WM_CLASS format is: instance\0class\0
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1], nil
	}
	if parts[0] != "" {
		return parts[0], nil
	}
	return "", fmt.Errorf("empty WM_CLASS on %s", h)
}

// Style maps _NET_WM_WINDOW_TYPE and WM_HINTS onto Style bits
func (b *X11Backend) Style(h Handle) (Style, error) {
	win := xproto.Window(h)
	var style Style

	typeReply, err := xproto.GetProperty(b.conn, false, win, b.windowTypeAtom, xproto.AtomAtom, 0, 32).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to read window type of %s: %w", h, err)
	}
	for i := 0; i+4 <= len(typeReply.Value); i += 4 {
		if b.toolWindowTypes[xproto.Atom(xgb.Get32(typeReply.Value[i:]))] {
			style |= StyleToolWindow
			break
		}
	}

	hintsReply, err := xproto.GetProperty(b.conn, false, win, xproto.AtomWmHints, xproto.AtomWmHints, 0, 9).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to read WM_HINTS of %s: %w", h, err)
	}
	if len(hintsReply.Value) >= 8 {
		const inputHint = 1
		flags := xgb.Get32(hintsReply.Value)
		input := xgb.Get32(hintsReply.Value[4:])
		if flags&inputHint != 0 && input == 0 {
			style |= StyleNoActivate
		}
	}

	return style, nil
}

// InjectSelfInput sends a zero-distance relative motion through XTEST
func (b *X11Backend) InjectSelfInput() error {
	if !b.xtest {
		return nil
	}
	const relative = 1
	return xtest.FakeInputChecked(b.conn, xproto.MotionNotify, relative, 0, xproto.WindowNone, 0, 0, 0).Check()
}

// SetTopNoMove restacks h above its siblings
func (b *X11Backend) SetTopNoMove(h Handle) error {
	return xproto.ConfigureWindowChecked(
		b.conn,
		xproto.Window(h),
		xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove},
	).Check()
}

// SetForeground asks the window manager to activate h. Source indication 2
// (pager) tells EWMH focus-stealing prevention the request comes from the user.
func (b *X11Backend) SetForeground(h Handle) error {
	if !b.ewmh {
		return xproto.SetInputFocusChecked(
			b.conn,
			xproto.InputFocusPointerRoot,
			xproto.Window(h),
			xproto.TimeCurrentTime,
		).Check()
	}

	current, _ := b.getWindowProperty(b.root, b.activeWindowAtom)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(h),
		Type:   b.activeWindowAtom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{2, xproto.TimeCurrentTime, uint32(current), 0, 0}),
	}

	return xproto.SendEventChecked(
		b.conn,
		false,
		b.root,
		xproto.EventMaskSubstructureNotify|xproto.EventMaskSubstructureRedirect,
		string(ev.Bytes()),
	).Check()
}

// getAtom gets an atom ID by name
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}

// getWindowProperty reads a single WINDOW-typed property
func (b *X11Backend) getWindowProperty(win xproto.Window, atom xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, fmt.Errorf("empty property")
	}
	return xproto.Window(xgb.Get32(reply.Value)), nil
}

func (b *X11Backend) hasProperty(win xproto.Window, atom xproto.Atom) bool {
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, 0).Reply()
	if err != nil {
		return false
	}
	return reply.Type != xproto.AtomNone
}
