package tray

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

// DefaultGraceDelay is how long the manager waits before announcing itself
// after displacing another manager, so the old manager's clients can detach.
const DefaultGraceDelay = time.Second

// State is the observable state of a Manager.
type State int

// Manager states.
const (
	Inactive State = iota
	Active
	ActiveHidden
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case ActiveHidden:
		return "active-hidden"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Change is a selection ownership transition reported through
// Options.OnChange.
type Change int

// Ownership transitions.
const (
	Activated Change = iota
	Deactivated
	SelectionLost
)

func (c Change) String() string {
	switch c {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	case SelectionLost:
		return "selection-lost"
	default:
		return fmt.Sprintf("Change(%d)", int(c))
	}
}

// Options configure a Manager. The zero value is usable.
type Options struct {
	Host   Host
	Logger *slog.Logger
	// GraceDelay overrides DefaultGraceDelay.
	GraceDelay time.Duration
	// After returns a channel that fires once d has elapsed. Defaults to
	// time.After.
	After func(d time.Duration) <-chan time.Time
	// OnChange is called on the dispatch goroutine after each ownership
	// transition.
	OnChange func(Change)
	WMName   string
	WMClass  string
	Pid      int
}

type atoms struct {
	opcode      xproto.Atom
	orientation xproto.Atom
	visual      xproto.Atom
	colors      xproto.Atom
	xembed      xproto.Atom
	xembedInfo  xproto.Atom
	protocols   xproto.Atom
	deleteWin   xproto.Atom
}

// Manager is the systray manager: it owns the container window, the
// selection and every docked client. All methods except Reconfigure's guard
// must be called from a single dispatch goroutine.
type Manager struct {
	conn  Conn
	host  Host
	log   *slog.Logger
	opts  Options
	atoms atoms
	sel   arbiter

	settings Settings
	clients  Registry

	unsubscribe func()
	broadcast   *delayedBroadcast

	container xproto.Window

	reconfiguring sync.Mutex

	active    bool
	mapped    bool
	hidden    bool
	restacked bool
}

// New returns an inactive manager. Call Bootstrap before Activate.
func New(conn Conn, opts Options) *Manager {
	if opts.Host == nil {
		opts.Host = noopHost{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = DefaultGraceDelay
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.WMName == "" {
		opts.WMName = "Traybar - system tray"
	}
	if opts.WMClass == "" {
		opts.WMClass = "traybar-tray"
	}
	if opts.Pid == 0 {
		opts.Pid = os.Getpid()
	}
	return &Manager{
		conn: conn,
		host: opts.Host,
		log:  opts.Logger,
		opts: opts,
		sel:  arbiter{conn: conn, log: opts.Logger},
	}
}

// Bootstrap stores the settings and resolves the atoms the manager needs,
// including the selection atom for the default screen.
func (m *Manager) Bootstrap(s Settings) error {
	m.settings = s

	name := selectionName(m.conn.DefaultScreen())
	m.log.Debug("[TRAY] Resolving systray selection atom", "name", name)
	atom, err := m.conn.InternAtom(name)
	if err != nil {
		return fmt.Errorf("intern %s: %w", name, err)
	}
	m.sel.atom = atom

	for _, a := range []struct {
		dst  *xproto.Atom
		name string
	}{
		{&m.sel.manager, "MANAGER"},
		{&m.atoms.opcode, "_NET_SYSTEM_TRAY_OPCODE"},
		{&m.atoms.orientation, "_NET_SYSTEM_TRAY_ORIENTATION"},
		{&m.atoms.visual, "_NET_SYSTEM_TRAY_VISUAL"},
		{&m.atoms.colors, "_NET_SYSTEM_TRAY_COLORS"},
		{&m.atoms.xembed, "_XEMBED"},
		{&m.atoms.xembedInfo, "_XEMBED_INFO"},
		{&m.atoms.protocols, "WM_PROTOCOLS"},
		{&m.atoms.deleteWin, "WM_DELETE_WINDOW"},
	} {
		atom, err := m.conn.InternAtom(a.name)
		if err != nil {
			return fmt.Errorf("intern %s: %w", a.name, err)
		}
		*a.dst = atom
	}
	return nil
}

// Settings returns the settings passed to Bootstrap.
func (m *Manager) Settings() Settings { return m.settings }

// State returns the current state.
func (m *Manager) State() State {
	switch {
	case !m.active:
		return Inactive
	case m.hidden:
		return ActiveHidden
	default:
		return Active
	}
}

// Container returns the container window, or WindowNone.
func (m *Manager) Container() xproto.Window { return m.container }

// SelectionAtom returns the systray selection atom.
func (m *Manager) SelectionAtom() xproto.Atom { return m.sel.atom }

// OtherManager returns the tracked competing selection owner, or WindowNone.
func (m *Manager) OtherManager() xproto.Window { return m.sel.other }

// Clients returns a snapshot of the docked clients in registry order.
func (m *Manager) Clients() []Client { return m.clients.Snapshot() }

// MappedClients returns the number of mapped clients.
func (m *Manager) MappedClients() int { return m.clients.MappedCount() }

// Activate starts managing the systray selection. It is a no-op while
// already active. Failures leave the manager inactive.
func (m *Manager) Activate() error {
	if m.active {
		return nil
	}

	if m.container == xproto.WindowNone {
		if err := m.setupWindow(); err != nil {
			m.log.Error("[TRAY] Cannot activate tray manager, failed to set up window", "error", err)
			return err
		}
	}

	m.log.Info("[TRAY] Activating tray manager", "window", windowID(m.container))
	m.active = true

	if !m.restacked && m.unsubscribe == nil {
		m.unsubscribe = m.host.SubscribeVisibility(m.barVisibilityChanged)
	}

	if err := m.sel.acquire(m.container); err != nil {
		m.log.Error("[TRAY] Failed to acquire systray selection", "error", err)
		m.deactivate()
		return err
	}

	if m.sel.other != xproto.WindowNone {
		m.log.Debug("[TRAY] Delaying manager broadcast", "delay", m.opts.GraceDelay)
		container := m.container
		m.broadcast = startDelayedBroadcast(m.opts.After(m.opts.GraceDelay), func() {
			if err := m.sel.broadcast(container); err != nil {
				m.log.Error("[TRAY] Failed to broadcast selection manager", "error", err)
			}
			m.conn.Flush()
		})
	} else if err := m.sel.broadcast(m.container); err != nil {
		m.log.Error("[TRAY] Failed to broadcast selection manager", "error", err)
	}

	m.conn.Flush()
	m.changed(Activated)
	return nil
}

// Deactivate releases the selection, unembeds every client and destroys the
// container. It returns once all of that has been requested.
func (m *Manager) Deactivate() {
	if m.deactivate() {
		m.changed(Deactivated)
	}
}

func (m *Manager) deactivate() bool {
	if !m.active {
		return false
	}
	m.log.Info("[TRAY] Deactivating tray manager")
	m.active = false

	if m.broadcast != nil {
		m.broadcast.stop()
		m.broadcast = nil
	}

	m.host.ReportSlots(0)

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	if err := m.sel.release(m.container); err != nil {
		m.log.Warn("[TRAY] Failed to release systray selection", "error", err)
	}

	m.log.Debug("[TRAY] Unembedding clients", "count", m.clients.Len())
	root := m.conn.Root()
	for _, c := range m.clients.Clear() {
		if err := notifyUnembedded(m.conn, c.Window, root); err != nil {
			m.log.Debug("[TRAY] Failed to unembed client", "window", windowID(c.Window), "error", err)
		}
	}

	if m.container != xproto.WindowNone {
		if m.mapped {
			if err := m.conn.UnmapWindow(m.container); err != nil {
				m.log.Debug("[TRAY] Failed to unmap tray window", "error", err)
			}
			m.mapped = false
		}
		if err := m.conn.DestroyWindow(m.container); err != nil {
			m.log.Debug("[TRAY] Failed to destroy tray window", "error", err)
		}
		m.container = xproto.WindowNone
		m.hidden = false
		m.restacked = false
	}

	m.conn.Flush()
	return true
}

// Close deactivates the manager.
func (m *Manager) Close() {
	m.Deactivate()
}

func (m *Manager) changed(c Change) {
	if m.opts.OnChange != nil {
		m.opts.OnChange(c)
	}
}

// processDockingRequest embeds win into the container. Failures remove the
// client and are logged, never returned.
func (m *Manager) processDockingRequest(win xproto.Window) {
	if m.clients.Contains(win) {
		m.log.Debug("[TRAY] Client is already embedded, skipping", "window", windowID(win))
		return
	}

	m.log.Debug("[TRAY] Processing docking request", "window", windowID(win))
	c := newClient(win, m.settings.IconWidth, m.settings.IconHeight)
	m.clients.Add(c)

	info, err := queryEmbedInfo(m.conn, m.atoms.xembedInfo, win)
	if err != nil {
		m.log.Error("[TRAY] Failed to query _XEMBED_INFO, removing client", "window", windowID(win), "error", err)
		m.clients.Remove(win)
		return
	}
	c.Info = info
	m.clients.SetInfo(win, info)

	if err := m.embed(c); err != nil {
		m.log.Error("[TRAY] Failed to set up tray client, removing", "window", windowID(win), "error", err)
		m.removeClient(win, false)
	}
}

func (m *Manager) embed(c Client) error {
	mask := uint32(xproto.CwEventMask)
	values := []uint32{xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify}
	if m.settings.Background != 0 {
		mask |= xproto.CwBackPixmap
		values = []uint32{xproto.BackPixmapParentRelative, values[0]}
	}
	if err := m.conn.ChangeWindowAttributes(c.Window, mask, values); err != nil {
		return windowErr(c.Window, "change attributes", err)
	}
	if err := c.configure(m.conn, 0, 0); err != nil {
		return err
	}
	if err := m.conn.ChangeSaveSet(xproto.SetModeInsert, c.Window); err != nil {
		return windowErr(c.Window, "add to save set", err)
	}
	if err := m.conn.ReparentWindow(c.Window, m.container, m.slotX(c.Window), ClientY(m.settings)); err != nil {
		return windowErr(c.Window, "reparent", err)
	}
	if err := notifyEmbedded(m.conn, m.atoms.xembed, c.Window, m.container, negotiatedVersion(c.Info.Version)); err != nil {
		return err
	}
	return ensureState(m.conn, c)
}

// removeClient unembeds and forgets win, then reconfigures unless told not
// to.
func (m *Manager) removeClient(win xproto.Window, reconfigure bool) {
	if !m.clients.Contains(win) {
		return
	}
	if err := notifyUnembedded(m.conn, win, m.conn.Root()); err != nil {
		m.log.Debug("[TRAY] Failed to unembed client", "window", windowID(win), "error", err)
	}
	m.clients.Remove(win)
	if reconfigure {
		m.reconfigureQuiet()
	}
}

// slotX returns the x offset of win's slot inside the container.
func (m *Manager) slotX(win xproto.Window) int16 {
	return SlotX(m.settings, m.clients.Slot(win))
}

// reconfigureQuiet runs Reconfigure and drops contention errors.
func (m *Manager) reconfigureQuiet() {
	if err := m.Reconfigure(); err != nil && !errors.Is(err, ErrAlreadyInProgress) {
		m.log.Warn("[TRAY] Reconfigure failed", "error", err)
	}
}

// delayedBroadcast sends the manager announcement after a grace period
// unless stopped first.
type delayedBroadcast struct {
	cancel chan struct{}
	done   chan struct{}
}

func startDelayedBroadcast(fire <-chan time.Time, send func()) *delayedBroadcast {
	b := &delayedBroadcast{cancel: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(b.done)
		select {
		case <-b.cancel:
		case <-fire:
			send()
		}
	}()
	return b
}

// stop cancels a pending broadcast and waits for the helper to exit.
func (b *delayedBroadcast) stop() {
	close(b.cancel)
	<-b.done
}
