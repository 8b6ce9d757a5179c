package tray

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
)

// selectionName returns the systray selection name for a screen.
func selectionName(screen int) string {
	return fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", screen)
}

// arbiter negotiates ownership of the systray selection.
type arbiter struct {
	conn    Conn
	log     *slog.Logger
	atom    xproto.Atom
	manager xproto.Atom
	// other is the competing owner seen at the last acquire or selection
	// clear, or WindowNone.
	other xproto.Window
}

// acquire claims the selection for container. A competing owner is recorded
// in a.other and claimed over.
func (a *arbiter) acquire(container xproto.Window) error {
	owner, err := a.conn.SelectionOwner(a.atom)
	if err != nil {
		return fmt.Errorf("%w: get owner: %w", ErrAcquisitionFailed, err)
	}
	if owner == container {
		a.log.Info("[TRAY] Already managing the systray selection")
		return nil
	}
	a.other = owner
	if owner != xproto.WindowNone {
		a.log.Info("[TRAY] Replacing selection manager", "owner", windowID(owner))
	}

	a.log.Debug("[TRAY] Changing selection owner", "window", windowID(container))
	if err := a.conn.SetSelectionOwner(container, a.atom); err != nil {
		return fmt.Errorf("%w: set owner: %w", ErrAcquisitionFailed, err)
	}
	owner, err = a.conn.SelectionOwner(a.atom)
	if err != nil {
		return fmt.Errorf("%w: read back owner: %w", ErrAcquisitionFailed, err)
	}
	if owner != container {
		return fmt.Errorf("%w: owner is %s", ErrAcquisitionFailed, windowID(owner))
	}
	return nil
}

// release gives up the selection if container still owns it.
func (a *arbiter) release(container xproto.Window) error {
	owner, err := a.conn.SelectionOwner(a.atom)
	if err != nil {
		return err
	}
	if owner != container || container == xproto.WindowNone {
		return nil
	}
	a.log.Debug("[TRAY] Unsetting selection owner")
	return a.conn.SetSelectionOwner(xproto.WindowNone, a.atom)
}

// broadcast announces container as the new manager to clients waiting on
// the root window.
func (a *arbiter) broadcast(container xproto.Window) error {
	a.log.Debug("[TRAY] Broadcasting new selection manager", "window", windowID(container))
	root := a.conn.Root()
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: root,
		Type:   a.manager,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			uint32(a.atom),
			uint32(container),
			0,
			0,
		}),
	}
	return a.conn.SendEvent(root, xproto.EventMaskStructureNotify, ev.Bytes())
}

// track asks for structure events on owner so its destruction is noticed.
func (a *arbiter) track(owner xproto.Window) error {
	if owner == xproto.WindowNone {
		return nil
	}
	a.log.Debug("[TRAY] Listening for events on the new selection owner", "owner", windowID(owner))
	return windowErr(owner, "select structure events",
		a.conn.ChangeWindowAttributes(owner, xproto.CwEventMask, []uint32{xproto.EventMaskStructureNotify}))
}

// ownerLost records the window that took the selection and starts tracking
// it. Failures leave no competing owner recorded.
func (a *arbiter) ownerLost() {
	owner, err := a.conn.SelectionOwner(a.atom)
	if err != nil {
		a.log.Error("[TRAY] Failed to get systray selection owner", "error", err)
		a.other = xproto.WindowNone
		return
	}
	a.other = owner
	if err := a.track(owner); err != nil {
		a.log.Warn("[TRAY] Failed to track new selection owner", "error", err)
	}
}
