package tray

import (
	"github.com/BurntSushi/xgb/xproto"
)

// System tray opcodes carried in data32[1] of _NET_SYSTEM_TRAY_OPCODE.
const (
	OpcodeRequestDock   = 0
	OpcodeBeginMessage  = 1
	OpcodeCancelMessage = 2
)

// Event is a window-system event the manager reacts to. The set of
// implementations is closed; see Dispatch.
type Event interface {
	trayEvent()
}

// ExposeEvent reports that part of Window needs repainting.
type ExposeEvent struct{ Window xproto.Window }

// VisibilityNotifyEvent reports a visibility change of Window.
type VisibilityNotifyEvent struct {
	Window xproto.Window
	State  byte
}

// ClientMessageEvent is a client message with 32-bit data.
type ClientMessageEvent struct {
	Window xproto.Window
	Type   xproto.Atom
	Format byte
	Data   [5]uint32
}

// ConfigureRequestEvent is a redirected configure request from a child of
// the container.
type ConfigureRequestEvent struct{ Window xproto.Window }

// ResizeRequestEvent is a redirected resize request.
type ResizeRequestEvent struct{ Window xproto.Window }

// SelectionClearEvent reports that Owner lost Selection.
type SelectionClearEvent struct {
	Owner     xproto.Window
	Selection xproto.Atom
}

// PropertyNotifyEvent reports a property change on Window.
type PropertyNotifyEvent struct {
	Window  xproto.Window
	Atom    xproto.Atom
	Deleted bool
}

// ReparentNotifyEvent reports that Window now has Parent.
type ReparentNotifyEvent struct {
	Window xproto.Window
	Parent xproto.Window
}

// DestroyNotifyEvent reports that Window was destroyed.
type DestroyNotifyEvent struct{ Window xproto.Window }

// MapNotifyEvent reports that Window was mapped.
type MapNotifyEvent struct{ Window xproto.Window }

// UnmapNotifyEvent reports that Window was unmapped.
type UnmapNotifyEvent struct{ Window xproto.Window }

func (ExposeEvent) trayEvent() {}
func (VisibilityNotifyEvent) trayEvent() {}
func (ClientMessageEvent) trayEvent() {}
func (ConfigureRequestEvent) trayEvent() {}
func (ResizeRequestEvent) trayEvent() {}
func (SelectionClearEvent) trayEvent() {}
func (PropertyNotifyEvent) trayEvent() {}
func (ReparentNotifyEvent) trayEvent() {}
func (DestroyNotifyEvent) trayEvent() {}
func (MapNotifyEvent) trayEvent() {}
func (UnmapNotifyEvent) trayEvent() {}

// Dispatch handles one event. Events are processed in the order they are
// dispatched; every handler runs to completion before Dispatch returns.
func (m *Manager) Dispatch(ev Event) {
	switch e := ev.(type) {
	case ExposeEvent:
		m.onRedraw(e.Window)
	case VisibilityNotifyEvent:
		m.onRedraw(e.Window)
	case ClientMessageEvent:
		m.onClientMessage(e)
	case ConfigureRequestEvent:
		m.onGeometryRequest(e.Window)
	case ResizeRequestEvent:
		m.onGeometryRequest(e.Window)
	case SelectionClearEvent:
		m.onSelectionClear(e)
	case PropertyNotifyEvent:
		m.onPropertyNotify(e)
	case ReparentNotifyEvent:
		m.onReparentNotify(e)
	case DestroyNotifyEvent:
		m.onDestroyNotify(e.Window)
	case MapNotifyEvent:
		m.onMapNotify(e.Window)
	case UnmapNotifyEvent:
		m.onUnmapNotify(e.Window)
	default:
		m.log.Debug("[TRAY] Ignoring unknown event", "type", ev)
	}
}

func (m *Manager) onRedraw(win xproto.Window) {
	if !m.active || m.clients.Len() == 0 {
		return
	}
	m.log.Debug("[TRAY] Redraw requested", "window", windowID(win))
	m.reconfigureQuiet()
}

func (m *Manager) onClientMessage(e ClientMessageEvent) {
	if !m.active {
		return
	}
	switch {
	case e.Type == m.atoms.opcode && e.Format == 32:
		switch e.Data[1] {
		case OpcodeRequestDock:
			m.processDockingRequest(xproto.Window(e.Data[2]))
		case OpcodeBeginMessage, OpcodeCancelMessage:
			// Balloon messages are not displayed.
			m.log.Debug("[TRAY] Ignoring tray message", "opcode", e.Data[1], "window", windowID(e.Window))
		default:
			m.log.Debug("[TRAY] Unknown tray opcode", "opcode", e.Data[1])
		}
	case e.Type == m.atoms.protocols && xproto.Atom(e.Data[0]) == m.atoms.deleteWin:
		if e.Window != m.container {
			return
		}
		m.log.Warn("[TRAY] Received WM_DELETE_WINDOW for tray window")
		// Forget the container before deactivating so no layout request is
		// issued against a window that is going away.
		old := m.container
		m.container = xproto.WindowNone
		if err := m.sel.release(old); err != nil {
			m.log.Debug("[TRAY] Failed to release systray selection", "error", err)
		}
		m.Deactivate()
		if err := m.conn.DestroyWindow(old); err != nil {
			m.log.Debug("[TRAY] Failed to destroy tray window", "error", err)
		}
		m.mapped = false
		m.hidden = false
		m.restacked = false
		m.conn.Flush()
	}
}

// onGeometryRequest pins a client to its slot regardless of what it asked for.
func (m *Manager) onGeometryRequest(win xproto.Window) {
	if !m.active {
		return
	}
	c, ok := m.clients.Find(win)
	if !ok {
		return
	}
	m.log.Debug("[TRAY] Client geometry request", "window", windowID(win))
	if err := c.configureNotify(m.conn, m.slotX(win), ClientY(m.settings)); err != nil {
		m.log.Error("[TRAY] Failed to reconfigure tray client, removing", "window", windowID(win), "error", err)
		m.removeClient(win, true)
	}
}

func (m *Manager) onSelectionClear(e SelectionClearEvent) {
	if !m.active || e.Selection != m.sel.atom || e.Owner != m.container {
		return
	}
	m.log.Warn("[TRAY] Lost systray selection, deactivating")
	m.sel.ownerLost()
	m.changed(SelectionLost)
	m.Deactivate()
}

func (m *Manager) onPropertyNotify(e PropertyNotifyEvent) {
	if !m.active || e.Atom != m.atoms.xembedInfo {
		return
	}
	if !m.clients.Contains(e.Window) {
		return
	}
	info, err := queryEmbedInfo(m.conn, m.atoms.xembedInfo, e.Window)
	if err != nil {
		m.log.Error("[TRAY] Failed to query _XEMBED_INFO, removing client", "window", windowID(e.Window), "error", err)
		m.removeClient(e.Window, true)
		return
	}
	m.log.Debug("[TRAY] _XEMBED_INFO changed", "window", windowID(e.Window),
		"version", info.Version, "flags", info.Flags)
	m.clients.SetInfo(e.Window, info)
	m.reconfigureQuiet()
}

func (m *Manager) onReparentNotify(e ReparentNotifyEvent) {
	if !m.active || e.Parent == m.container || !m.clients.Contains(e.Window) {
		return
	}
	m.log.Debug("[TRAY] Client reparented away, removing", "window", windowID(e.Window), "parent", windowID(e.Parent))
	m.removeClient(e.Window, true)
}

func (m *Manager) onDestroyNotify(win xproto.Window) {
	switch {
	case !m.active && win != xproto.WindowNone && win == m.sel.other:
		m.log.Info("[TRAY] Systray selection is available, re-activating", "old_owner", windowID(win))
		if err := m.Activate(); err != nil {
			m.log.Error("[TRAY] Re-activation failed", "error", err)
		}
	case m.active && m.clients.Contains(win):
		m.log.Debug("[TRAY] Client destroyed, removing", "window", windowID(win))
		m.removeClient(win, true)
	}
}

func (m *Manager) onMapNotify(win xproto.Window) {
	if !m.active {
		return
	}
	if win == m.container {
		if m.mapped {
			return
		}
		m.log.Debug("[TRAY] Tray window mapped")
		m.mapped = true
		m.reconfigureQuiet()
		return
	}
	if m.clients.SetMapped(win, true) {
		m.log.Debug("[TRAY] Client mapped", "window", windowID(win))
		m.reconfigureQuiet()
	}
}

func (m *Manager) onUnmapNotify(win xproto.Window) {
	if !m.active {
		return
	}
	if win == m.container {
		if !m.mapped {
			return
		}
		m.log.Debug("[TRAY] Tray window unmapped")
		m.mapped = false
		m.reconfigureQuiet()
		return
	}
	if m.clients.SetMapped(win, false) {
		m.log.Debug("[TRAY] Client unmapped", "window", windowID(win))
		m.reconfigureQuiet()
	}
}
