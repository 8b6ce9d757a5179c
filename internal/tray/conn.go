package tray

import "github.com/BurntSushi/xgb/xproto"

// Hints is the ICCCM/EWMH metadata written on the container window.
type Hints struct {
	Name       string
	Instance   string
	Class      string
	Protocols  []string
	WindowType []string
	State      []string
	Pid        uint
}

// Conn is the synchronous request/reply facade the manager uses for every
// window operation. Errors returned for a specific window are treated as
// protocol window errors by the caller.
//
// Implementations must tolerate SendEvent and Flush being called from the
// delayed broadcast goroutine while the dispatch goroutine is idle.
type Conn interface {
	Root() xproto.Window
	RootVisual() xproto.Visualid
	DefaultScreen() int
	InternAtom(name string) (xproto.Atom, error)

	CreateWindow(x, y int16, width, height uint16, mask uint32, values []uint32) (xproto.Window, error)
	DestroyWindow(win xproto.Window) error
	MapWindow(win xproto.Window) error
	UnmapWindow(win xproto.Window) error
	ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error
	ChangeWindowAttributes(win xproto.Window, mask uint32, values []uint32) error
	ReparentWindow(win, parent xproto.Window, x, y int16) error
	ChangeSaveSet(mode byte, win xproto.Window) error
	ClearArea(win xproto.Window) error

	SelectionOwner(selection xproto.Atom) (xproto.Window, error)
	SetSelectionOwner(owner xproto.Window, selection xproto.Atom) error
	SendEvent(dest xproto.Window, mask uint32, event []byte) error

	GetProperty(win xproto.Window, property xproto.Atom) (*xproto.GetPropertyReply, error)
	ChangeProperty32(win xproto.Window, property, typ xproto.Atom, values ...uint32) error
	SetHints(win xproto.Window, hints Hints) error

	Flush()
}

// Host is the bar hosting the tray.
type Host interface {
	// ReportSlots is called after every successful reconfigure with the
	// number of mapped clients, and with zero on deactivation.
	ReportSlots(count int)
	// SubscribeVisibility registers fn to be called with the bar's
	// visibility. The returned func removes the subscription.
	SubscribeVisibility(fn func(visible bool)) (unsubscribe func())
}

type noopHost struct{}

func (noopHost) ReportSlots(int) {}

func (noopHost) SubscribeVisibility(func(bool)) func() { return func() {} }
