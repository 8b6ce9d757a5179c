// Package xconn is the X11 connection used by the bar and the tray: a thin
// request/reply facade over xgb and xgbutil plus translation of raw events
// into the tray's event types.
package xconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

const (
	dialAttempts = 5
	dialMaxDelay = 4 * time.Second

	// maxPropertyWords bounds property reads; tray properties are tiny.
	maxPropertyWords = 64
)

// ErrNoDisplay is returned by Dial when neither a display name nor $DISPLAY
// is set.
var ErrNoDisplay = errors.New("no X display configured (set DISPLAY or pass -display)")

// Conn is a connection to an X server.
type Conn struct {
	xu *xgbutil.XUtil
	x  *xgb.Conn
}

var _ tray.Conn = (*Conn)(nil)

// Dial connects to display, or $DISPLAY when empty, retrying with backoff
// while the server is not yet accepting connections.
func Dial(ctx context.Context, display string) (*Conn, error) {
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		return nil, ErrNoDisplay
	}

	var xu *xgbutil.XUtil
	err := retry.Do(func() error {
		var err error
		xu, err = xgbutil.NewConnDisplay(display)
		return err
	},
		retry.Attempts(dialAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(dialMaxDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("[XCONN] Display connection retry", "display", display, "attempt", n+1, "maxAttempts", dialAttempts, "error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to display %q: %w", display, err)
	}
	slog.Info("[XCONN] Connected to display", "display", display, "screen", xu.Conn().DefaultScreen)
	return &Conn{xu: xu, x: xu.Conn()}, nil
}

// Close closes the connection; a pending WaitForEvent returns.
func (c *Conn) Close() {
	c.x.Close()
}

// WaitForEvent blocks for the next event or asynchronous error. Both are
// nil once the connection is closed.
func (c *Conn) WaitForEvent() (xgb.Event, error) {
	ev, xerr := c.x.WaitForEvent()
	if xerr != nil {
		return ev, xerr
	}
	return ev, nil
}

func (c *Conn) Root() xproto.Window { return c.xu.RootWin() }

func (c *Conn) RootVisual() xproto.Visualid { return c.xu.Screen().RootVisual }

func (c *Conn) DefaultScreen() int { return c.x.DefaultScreen }

// ScreenSize returns the size of the default screen in pixels.
func (c *Conn) ScreenSize() (width, height uint16) {
	s := c.xu.Screen()
	return s.WidthInPixels, s.HeightInPixels
}

// InternAtom resolves name, creating the atom if needed. Results are cached.
func (c *Conn) InternAtom(name string) (xproto.Atom, error) {
	return xprop.Atm(c.xu, name)
}

// CreateWindow creates an input-output child of the root with the root's
// depth and visual.
func (c *Conn) CreateWindow(x, y int16, width, height uint16, mask uint32, values []uint32) (xproto.Window, error) {
	win, err := xproto.NewWindowId(c.x)
	if err != nil {
		return 0, fmt.Errorf("allocate window id: %w", err)
	}
	s := c.xu.Screen()
	err = xproto.CreateWindowChecked(c.x, s.RootDepth, win, s.Root, x, y, width, height, 0,
		xproto.WindowClassInputOutput, s.RootVisual, mask, values).Check()
	if err != nil {
		return 0, err
	}
	return win, nil
}

func (c *Conn) DestroyWindow(win xproto.Window) error {
	return xproto.DestroyWindowChecked(c.x, win).Check()
}

func (c *Conn) MapWindow(win xproto.Window) error {
	return xproto.MapWindowChecked(c.x, win).Check()
}

func (c *Conn) UnmapWindow(win xproto.Window) error {
	return xproto.UnmapWindowChecked(c.x, win).Check()
}

func (c *Conn) ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error {
	return xproto.ConfigureWindowChecked(c.x, win, mask, values).Check()
}

func (c *Conn) ChangeWindowAttributes(win xproto.Window, mask uint32, values []uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.x, win, mask, values).Check()
}

func (c *Conn) ReparentWindow(win, parent xproto.Window, x, y int16) error {
	return xproto.ReparentWindowChecked(c.x, win, parent, x, y).Check()
}

func (c *Conn) ChangeSaveSet(mode byte, win xproto.Window) error {
	return xproto.ChangeSaveSetChecked(c.x, mode, win).Check()
}

// ClearArea clears the whole window without generating exposures.
func (c *Conn) ClearArea(win xproto.Window) error {
	return xproto.ClearAreaChecked(c.x, false, win, 0, 0, 0, 0).Check()
}

func (c *Conn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetSelectionOwner(c.x, selection).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Owner, nil
}

func (c *Conn) SetSelectionOwner(owner xproto.Window, selection xproto.Atom) error {
	return xproto.SetSelectionOwnerChecked(c.x, owner, selection, xproto.TimeCurrentTime).Check()
}

func (c *Conn) SendEvent(dest xproto.Window, mask uint32, event []byte) error {
	return xproto.SendEventChecked(c.x, false, dest, mask, string(event)).Check()
}

func (c *Conn) GetProperty(win xproto.Window, property xproto.Atom) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(c.x, false, win, property, xproto.GetPropertyTypeAny, 0, maxPropertyWords).Reply()
}

// ChangeProperty32 replaces property on win with 32-bit values of type typ.
func (c *Conn) ChangeProperty32(win xproto.Window, property, typ xproto.Atom, values ...uint32) error {
	propName, err := xprop.AtomName(c.xu, property)
	if err != nil {
		return fmt.Errorf("resolve property atom %d: %w", property, err)
	}
	typName, err := xprop.AtomName(c.xu, typ)
	if err != nil {
		return fmt.Errorf("resolve type atom %d: %w", typ, err)
	}
	data := make([]uint, len(values))
	for i, v := range values {
		data[i] = uint(v)
	}
	return xprop.ChangeProp32(c.xu, win, propName, typName, data...)
}

// SetHints writes ICCCM and EWMH metadata. Empty fields are skipped.
func (c *Conn) SetHints(win xproto.Window, h tray.Hints) error {
	var errs []error
	if h.Name != "" {
		errs = append(errs, icccm.WmNameSet(c.xu, win, h.Name), ewmh.WmNameSet(c.xu, win, h.Name))
	}
	if h.Class != "" {
		errs = append(errs, icccm.WmClassSet(c.xu, win, &icccm.WmClass{Instance: h.Instance, Class: h.Class}))
	}
	if len(h.Protocols) > 0 {
		errs = append(errs, icccm.WmProtocolsSet(c.xu, win, h.Protocols))
	}
	if len(h.WindowType) > 0 {
		errs = append(errs, ewmh.WmWindowTypeSet(c.xu, win, h.WindowType))
	}
	if len(h.State) > 0 {
		errs = append(errs, ewmh.WmStateSet(c.xu, win, h.State))
	}
	if h.Pid != 0 {
		errs = append(errs, ewmh.WmPidSet(c.xu, win, h.Pid))
	}
	return errors.Join(errs...)
}

// SetStrut reserves space at the top or bottom screen edge for win, which
// spans [startX, endX].
func (c *Conn) SetStrut(win xproto.Window, bottom bool, size uint, startX, endX uint) error {
	strut := &ewmh.WmStrut{}
	partial := &ewmh.WmStrutPartial{}
	if bottom {
		strut.Bottom = size
		partial.Bottom, partial.BottomStartX, partial.BottomEndX = size, startX, endX
	} else {
		strut.Top = size
		partial.Top, partial.TopStartX, partial.TopEndX = size, startX, endX
	}
	return errors.Join(
		ewmh.WmStrutSet(c.xu, win, strut),
		ewmh.WmStrutPartialSet(c.xu, win, partial),
	)
}

// Flush sends buffered requests. xgb writes requests as they are issued, so
// this round-trips to make sure the server has processed them.
func (c *Conn) Flush() {
	c.xu.Sync()
}
