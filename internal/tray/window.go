package tray

import (
	"errors"
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/xproto"
)

const orientationHorizontal = 0

// setupWindow creates and hints the container. On failure nothing is left
// behind and the error wraps ErrSetupFailed.
func (m *Manager) setupWindow() error {
	if err := m.createWindow(); err != nil {
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	err := errors.Join(m.applyHints(), m.setTrayColors())
	if err != nil {
		if derr := m.conn.DestroyWindow(m.container); derr != nil {
			m.log.Debug("[TRAY] Failed to destroy half set up tray window", "error", derr)
		}
		m.container = xproto.WindowNone
		m.restacked = false
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}
	return nil
}

func (m *Manager) createWindow() error {
	r := InitialRect(m.settings)
	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwOverrideRedirect | xproto.CwEventMask)
	values := []uint32{
		m.settings.Background,
		m.settings.Background,
		1,
		xproto.EventMaskSubstructureRedirect | xproto.EventMaskStructureNotify,
	}
	win, err := m.conn.CreateWindow(r.X, r.Y, r.Width, r.Height, mask, values)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	m.container = win
	m.log.Debug("[TRAY] Created tray window", "window", windowID(win),
		"x", r.X, "y", r.Y, "width", r.Width, "height", r.Height)

	if m.settings.Sibling == xproto.WindowNone {
		return nil
	}
	err = m.conn.ConfigureWindow(win,
		xproto.ConfigWindowSibling|xproto.ConfigWindowStackMode,
		[]uint32{uint32(m.settings.Sibling), xproto.StackModeAbove})
	if err != nil {
		m.log.Debug("[TRAY] Failed to put tray above sibling in the stack",
			"sibling", windowID(m.settings.Sibling), "error", err)
		return nil
	}
	m.restacked = true
	return nil
}

func (m *Manager) applyHints() error {
	m.log.Debug("[TRAY] Setting window hints", "window", windowID(m.container))
	err := m.conn.SetHints(m.container, Hints{
		Name:       m.opts.WMName,
		Instance:   m.opts.WMClass,
		Class:      m.opts.WMClass,
		Protocols:  []string{"WM_DELETE_WINDOW", "WM_TAKE_FOCUS"},
		WindowType: []string{"_NET_WM_WINDOW_TYPE_DOCK", "_NET_WM_WINDOW_TYPE_NORMAL"},
		State:      []string{"_NET_WM_STATE_SKIP_TASKBAR"},
		Pid:        uint(m.opts.Pid),
	})
	if err != nil {
		return fmt.Errorf("set hints: %w", err)
	}
	if err := m.conn.ChangeProperty32(m.container, m.atoms.orientation, m.atoms.orientation, orientationHorizontal); err != nil {
		return fmt.Errorf("set _NET_SYSTEM_TRAY_ORIENTATION: %w", err)
	}
	if err := m.conn.ChangeProperty32(m.container, m.atoms.visual, xproto.AtomVisualid, uint32(m.conn.RootVisual())); err != nil {
		return fmt.Errorf("set _NET_SYSTEM_TRAY_VISUAL: %w", err)
	}
	return nil
}

// trayColors expands a 0xRRGGBB color into the four identical 16-bit
// triples of _NET_SYSTEM_TRAY_COLORS (normal, error, warning, success).
func trayColors(rgb uint32) []uint32 {
	r := (rgb >> 16 & 0xff) * 0x101
	g := (rgb >> 8 & 0xff) * 0x101
	b := (rgb & 0xff) * 0x101
	out := make([]uint32, 0, 12)
	for range 4 {
		out = append(out, r, g, b)
	}
	return out
}

func (m *Manager) setTrayColors() error {
	m.log.Debug("[TRAY] Setting _NET_SYSTEM_TRAY_COLORS", "background", fmt.Sprintf("#%06x", m.settings.Background))
	if err := m.conn.ChangeProperty32(m.container, m.atoms.colors, xproto.AtomCardinal, trayColors(m.settings.Background)...); err != nil {
		return fmt.Errorf("set _NET_SYSTEM_TRAY_COLORS: %w", err)
	}
	return nil
}

// Reconfigure lays out every client and resizes the container to fit. It is
// a no-op without a container or while hidden. A call made while another
// is running returns ErrAlreadyInProgress without doing anything; the next
// event retriggers layout.
func (m *Manager) Reconfigure() error {
	if m.container == xproto.WindowNone || m.hidden {
		return nil
	}
	if !m.reconfiguring.TryLock() {
		m.log.Debug("[TRAY] Reconfigure already in progress")
		return ErrAlreadyInProgress
	}
	defer m.reconfiguring.Unlock()

	m.reconfigureClients()
	err := m.reconfigureWindow()
	m.conn.Flush()
	if err != nil {
		return err
	}

	m.host.ReportSlots(m.clients.MappedCount())
	return nil
}

// reconfigureClients reconciles each client's map state and moves mapped
// clients into their slots, newest first. Clients that fail are removed.
func (m *Manager) reconfigureClients() {
	y := ClientY(m.settings)
	slot := 0
	for _, c := range slices.Backward(m.clients.Snapshot()) {
		err := ensureState(m.conn, c)
		if err == nil && c.Mapped {
			if err = c.configure(m.conn, SlotX(m.settings, slot), y); err == nil {
				slot++
			}
		}
		if err != nil {
			m.log.Warn("[TRAY] Failed to reconfigure client, removing", "window", windowID(c.Window), "error", err)
			m.removeClient(c.Window, false)
		}
	}
}

func (m *Manager) reconfigureWindow() error {
	n := m.clients.MappedCount()
	if n == 0 {
		if m.mapped {
			return m.conn.UnmapWindow(m.container)
		}
		return nil
	}

	if m.mapped {
		if err := m.conn.ClearArea(m.container); err != nil {
			return fmt.Errorf("clear tray window: %w", err)
		}
	}
	r := ContainerRect(m.settings, n)
	if err := m.conn.ConfigureWindow(m.container,
		xproto.ConfigWindowX|xproto.ConfigWindowWidth,
		[]uint32{uint32(r.X), uint32(r.Width)}); err != nil {
		return fmt.Errorf("configure tray window: %w", err)
	}
	if !m.mapped {
		return m.conn.MapWindow(m.container)
	}
	return nil
}

// barVisibilityChanged mirrors the bar's visibility into the container when
// it could not be stacked above the bar.
func (m *Manager) barVisibilityChanged(visible bool) {
	if m.hidden == !visible || m.container == xproto.WindowNone {
		return
	}
	m.hidden = !visible

	switch {
	case !m.hidden && !m.mapped:
		if err := m.conn.MapWindow(m.container); err != nil {
			m.log.Warn("[TRAY] Failed to map tray window", "error", err)
		}
	case m.hidden && m.mapped:
		if err := m.conn.UnmapWindow(m.container); err != nil {
			m.log.Warn("[TRAY] Failed to unmap tray window", "error", err)
		}
	default:
		return
	}
	m.conn.Flush()
}
