package xconn

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

// Translate converts a raw event into the tray's event type. It reports
// false for events the tray does not handle.
func Translate(ev xgb.Event) (tray.Event, bool) {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		return tray.ExposeEvent{Window: e.Window}, true
	case xproto.VisibilityNotifyEvent:
		return tray.VisibilityNotifyEvent{Window: e.Window, State: e.State}, true
	case xproto.ClientMessageEvent:
		out := tray.ClientMessageEvent{Window: e.Window, Type: e.Type, Format: e.Format}
		copy(out.Data[:], e.Data.Data32)
		return out, true
	case xproto.ConfigureRequestEvent:
		return tray.ConfigureRequestEvent{Window: e.Window}, true
	case xproto.ResizeRequestEvent:
		return tray.ResizeRequestEvent{Window: e.Window}, true
	case xproto.SelectionClearEvent:
		return tray.SelectionClearEvent{Owner: e.Owner, Selection: e.Selection}, true
	case xproto.PropertyNotifyEvent:
		return tray.PropertyNotifyEvent{Window: e.Window, Atom: e.Atom, Deleted: e.State == xproto.PropertyDelete}, true
	case xproto.ReparentNotifyEvent:
		return tray.ReparentNotifyEvent{Window: e.Window, Parent: e.Parent}, true
	case xproto.DestroyNotifyEvent:
		return tray.DestroyNotifyEvent{Window: e.Window}, true
	case xproto.MapNotifyEvent:
		return tray.MapNotifyEvent{Window: e.Window}, true
	case xproto.UnmapNotifyEvent:
		return tray.UnmapNotifyEvent{Window: e.Window}, true
	default:
		return nil, false
	}
}
