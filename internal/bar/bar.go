// Package bar implements the bar window hosting the tray.
package bar

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

// Conn is the subset of the X connection the bar needs.
type Conn interface {
	ScreenSize() (width, height uint16)
	CreateWindow(x, y int16, width, height uint16, mask uint32, values []uint32) (xproto.Window, error)
	DestroyWindow(win xproto.Window) error
	MapWindow(win xproto.Window) error
	SetHints(win xproto.Window, hints tray.Hints) error
	SetStrut(win xproto.Window, bottom bool, size, startX, endX uint) error
	Flush()
}

// Config describes the bar window.
type Config struct {
	Name string
	// Width of zero spans the screen.
	Width      uint16
	Height     uint16
	Background uint32
	Bottom     bool
	// IconSize and Spacing size the area reserved for the tray.
	IconSize uint16
	Spacing  uint16
}

// Bar is the bar window. It implements tray.Host.
type Bar struct {
	conn Conn
	log  *slog.Logger
	cfg  Config

	subs    map[int]func(bool)
	onSlots func(int)

	rect    xproto.Rectangle
	win     xproto.Window
	nextSub int
	slots   int
	visible bool
}

var _ tray.Host = (*Bar)(nil)

// New returns a bar that has not created its window yet.
func New(conn Conn, cfg Config, logger *slog.Logger) *Bar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bar{conn: conn, cfg: cfg, log: logger, subs: map[int]func(bool){}}
}

// Geometry returns where a bar with cfg sits on a screen of the given size.
func Geometry(cfg Config, screenW, screenH uint16) xproto.Rectangle {
	r := xproto.Rectangle{Width: cfg.Width, Height: cfg.Height}
	if r.Width == 0 || r.Width > screenW {
		r.Width = screenW
	}
	if cfg.Bottom && screenH > cfg.Height {
		r.Y = int16(screenH - cfg.Height)
	}
	return r
}

// Create creates, hints and maps the bar window.
func (b *Bar) Create() error {
	sw, sh := b.conn.ScreenSize()
	b.rect = Geometry(b.cfg, sw, sh)

	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		b.cfg.Background,
		1,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify | xproto.EventMaskVisibilityChange,
	}
	win, err := b.conn.CreateWindow(b.rect.X, b.rect.Y, b.rect.Width, b.rect.Height, mask, values)
	if err != nil {
		return fmt.Errorf("create bar window: %w", err)
	}
	b.win = win
	b.log.Info("[BAR] Created bar window", "window", fmt.Sprintf("0x%07x", uint32(win)),
		"x", b.rect.X, "y", b.rect.Y, "width", b.rect.Width, "height", b.rect.Height)

	err = errors.Join(
		b.conn.SetHints(win, tray.Hints{
			Name:       b.cfg.Name,
			Instance:   "traybar",
			Class:      "Traybar",
			WindowType: []string{"_NET_WM_WINDOW_TYPE_DOCK"},
			State:      []string{"_NET_WM_STATE_STICKY", "_NET_WM_STATE_ABOVE"},
			Pid:        uint(os.Getpid()),
		}),
		b.conn.SetStrut(win, b.cfg.Bottom, uint(b.rect.Height), uint(b.rect.X), uint(int(b.rect.X)+int(b.rect.Width)-1)),
	)
	if err != nil {
		b.log.Warn("[BAR] Failed to set window hints", "error", err)
	}

	if err := b.conn.MapWindow(win); err != nil {
		return fmt.Errorf("map bar window: %w", err)
	}
	b.conn.Flush()
	return nil
}

// Close destroys the bar window.
func (b *Bar) Close() {
	if b.win == xproto.WindowNone {
		return
	}
	if err := b.conn.DestroyWindow(b.win); err != nil {
		b.log.Debug("[BAR] Failed to destroy bar window", "error", err)
	}
	b.win = xproto.WindowNone
	b.conn.Flush()
}

// Window returns the bar window, or WindowNone before Create.
func (b *Bar) Window() xproto.Window { return b.win }

// Rect returns the bar geometry.
func (b *Bar) Rect() xproto.Rectangle { return b.rect }

// Visible reports whether the bar is currently visible.
func (b *Bar) Visible() bool { return b.visible }

// Handle tracks the bar's own visibility from map and visibility events.
func (b *Bar) Handle(ev tray.Event) {
	switch e := ev.(type) {
	case tray.MapNotifyEvent:
		if e.Window == b.win {
			b.setVisible(true)
		}
	case tray.UnmapNotifyEvent:
		if e.Window == b.win {
			b.setVisible(false)
		}
	case tray.VisibilityNotifyEvent:
		if e.Window == b.win {
			b.setVisible(e.State != xproto.VisibilityFullyObscured)
		}
	}
}

func (b *Bar) setVisible(v bool) {
	if b.visible == v {
		return
	}
	b.visible = v
	b.log.Debug("[BAR] Visibility changed", "visible", v)
	for _, fn := range b.subs {
		fn(v)
	}
}

// SubscribeVisibility registers fn for visibility changes.
func (b *Bar) SubscribeVisibility(fn func(bool)) func() {
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() { delete(b.subs, id) }
}

// OnSlots registers fn to receive every slot count report.
func (b *Bar) OnSlots(fn func(int)) { b.onSlots = fn }

// ReportSlots records the number of mapped tray icons.
func (b *Bar) ReportSlots(n int) {
	b.slots = n
	b.log.Debug("[BAR] Tray slots reported", "slots", n, "reserved", b.TrayWidth())
	if b.onSlots != nil {
		b.onSlots(n)
	}
}

// Slots returns the last reported slot count.
func (b *Bar) Slots() int { return b.slots }

// TrayWidth returns the width reserved for the tray.
func (b *Bar) TrayWidth() uint16 {
	if b.slots == 0 {
		return 0
	}
	return uint16(b.slots)*(b.cfg.IconSize+b.cfg.Spacing) + b.cfg.Spacing
}
