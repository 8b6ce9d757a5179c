package tray

import (
	"slices"

	"github.com/BurntSushi/xgb/xproto"
)

// Client is one docked application icon.
type Client struct {
	Info   EmbedInfo
	Window xproto.Window
	Width  uint16
	Height uint16
	Mapped bool
}

func newClient(win xproto.Window, width, height uint16) Client {
	return Client{
		Window: win,
		Width:  width,
		Height: height,
		Info:   EmbedInfo{Version: XEmbedVersion, Flags: XEmbedMapped},
	}
}

// configure moves and resizes the client window.
func (c Client) configure(conn Conn, x, y int16) error {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(x), uint32(y), uint32(c.Width), uint32(c.Height)}
	return windowErr(c.Window, "configure", conn.ConfigureWindow(c.Window, mask, values))
}

// configureNotify answers a configure or resize request with the geometry
// the manager assigned, ignoring whatever the client asked for.
func (c Client) configureNotify(conn Conn, x, y int16) error {
	ev := xproto.ConfigureNotifyEvent{
		Event:            c.Window,
		Window:           c.Window,
		AboveSibling:     xproto.WindowNone,
		X:                x,
		Y:                y,
		Width:            c.Width,
		Height:           c.Height,
		BorderWidth:      0,
		OverrideRedirect: false,
	}
	return windowErr(c.Window, "send configure notify", conn.SendEvent(c.Window, xproto.EventMaskStructureNotify, ev.Bytes()))
}

// Registry is the ordered set of docked clients, keyed by window handle.
// It is the only owner of client state; lookups return copies and updates
// go through the window handle.
type Registry struct {
	clients []Client
}

func (r *Registry) index(win xproto.Window) int {
	return slices.IndexFunc(r.clients, func(c Client) bool { return c.Window == win })
}

// Len returns the number of docked clients.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Add appends c. It reports false, leaving the registry untouched, when a
// client with the same window is already present.
func (r *Registry) Add(c Client) bool {
	if r.index(c.Window) >= 0 {
		return false
	}
	r.clients = append(r.clients, c)
	return true
}

// Find returns a copy of the client for win.
func (r *Registry) Find(win xproto.Window) (Client, bool) {
	i := r.index(win)
	if i < 0 {
		return Client{}, false
	}
	return r.clients[i], true
}

// Contains reports whether win is docked.
func (r *Registry) Contains(win xproto.Window) bool {
	return r.index(win) >= 0
}

// Remove deletes the client for win.
func (r *Registry) Remove(win xproto.Window) bool {
	i := r.index(win)
	if i < 0 {
		return false
	}
	r.clients = slices.Delete(r.clients, i, i+1)
	return true
}

// SetMapped records the mapped state of win.
func (r *Registry) SetMapped(win xproto.Window, mapped bool) bool {
	i := r.index(win)
	if i < 0 {
		return false
	}
	r.clients[i].Mapped = mapped
	return true
}

// SetInfo records the latest _XEMBED_INFO of win.
func (r *Registry) SetInfo(win xproto.Window, info EmbedInfo) bool {
	i := r.index(win)
	if i < 0 {
		return false
	}
	r.clients[i].Info = info
	return true
}

// MappedCount returns the number of mapped clients.
func (r *Registry) MappedCount() int {
	n := 0
	for _, c := range r.clients {
		if c.Mapped {
			n++
		}
	}
	return n
}

// Slot returns the slot index of win: the number of mapped clients that come
// after it in registry order. Clients are laid out in reverse order so the
// most recently docked icon sits leftmost.
func (r *Registry) Slot(win xproto.Window) int {
	i := r.index(win)
	if i < 0 {
		return 0
	}
	n := 0
	for _, c := range r.clients[i+1:] {
		if c.Mapped {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of all clients in registry order.
func (r *Registry) Snapshot() []Client {
	return slices.Clone(r.clients)
}

// Clear removes every client and returns them in registry order.
func (r *Registry) Clear() []Client {
	out := r.clients
	r.clients = nil
	return out
}
