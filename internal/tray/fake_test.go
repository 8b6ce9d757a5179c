package tray

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

var errBadWindow = errors.New("BadWindow")

const (
	fakeRoot   xproto.Window   = 0x100
	fakeVisual xproto.Visualid = 0x21
)

type fakeOp struct {
	name   string
	window xproto.Window
	values []uint32
}

type sentEvent struct {
	dest  xproto.Window
	mask  uint32
	event []byte
}

type fakeWindow struct {
	parent xproto.Window
	mapped bool
}

// fakeConn is an in-memory X server good enough for the manager: it tracks
// windows, map state, selection owners and properties, records every request
// and fails on demand.
type fakeConn struct {
	mu sync.Mutex

	nextID  xproto.Window
	atoms   map[string]xproto.Atom
	windows map[xproto.Window]*fakeWindow
	owners  map[xproto.Atom]xproto.Window
	props   map[xproto.Window]map[xproto.Atom][]uint32
	hints   map[xproto.Window]Hints
	ops     []fakeOp
	sent    []sentEvent
	flushes int

	// failOp fails every request of the named kind.
	failOp map[string]error
	// failWin fails every request against the window.
	failWin map[xproto.Window]error
	// stolenBy, when set, makes every selection read back as this owner.
	stolenBy xproto.Window
	// onConfigure runs after each ConfigureWindow without the lock held.
	onConfigure func(win xproto.Window)
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		nextID:  0x400000,
		atoms:   map[string]xproto.Atom{},
		windows: map[xproto.Window]*fakeWindow{fakeRoot: {mapped: true}},
		owners:  map[xproto.Atom]xproto.Window{},
		props:   map[xproto.Window]map[xproto.Atom][]uint32{},
		hints:   map[xproto.Window]Hints{},
		failOp:  map[string]error{},
		failWin: map[xproto.Window]error{},
	}
}

func (f *fakeConn) record(name string, win xproto.Window, values ...uint32) error {
	f.ops = append(f.ops, fakeOp{name: name, window: win, values: values})
	if err := f.failOp[name]; err != nil {
		return err
	}
	if err := f.failWin[win]; err != nil {
		return err
	}
	return nil
}

// addClient creates a top-level window, optionally carrying _XEMBED_INFO.
func (f *fakeConn) addClient(info *EmbedInfo) xproto.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	win := f.nextID
	f.windows[win] = &fakeWindow{parent: fakeRoot}
	if info != nil {
		f.setPropLocked(win, f.atomLocked("_XEMBED_INFO"), info.Version, info.Flags)
	}
	return win
}

func (f *fakeConn) setProp(win xproto.Window, name string, values ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setPropLocked(win, f.atomLocked(name), values...)
}

func (f *fakeConn) setPropLocked(win xproto.Window, atom xproto.Atom, values ...uint32) {
	if f.props[win] == nil {
		f.props[win] = map[xproto.Atom][]uint32{}
	}
	f.props[win][atom] = values
}

func (f *fakeConn) prop(win xproto.Window, name string) []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[win][f.atomLocked(name)]
}

func (f *fakeConn) atom(name string) xproto.Atom {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atomLocked(name)
}

func (f *fakeConn) atomLocked(name string) xproto.Atom {
	a, ok := f.atoms[name]
	if !ok {
		a = xproto.Atom(100 + len(f.atoms))
		f.atoms[name] = a
	}
	return a
}

func (f *fakeConn) window(win xproto.Window) (fakeWindow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[win]
	if !ok {
		return fakeWindow{}, false
	}
	return *w, true
}

func (f *fakeConn) isMapped(win xproto.Window) bool {
	w, ok := f.window(win)
	return ok && w.mapped
}

func (f *fakeConn) owner(sel xproto.Atom) xproto.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[sel]
}

func (f *fakeConn) setOwner(sel xproto.Atom, owner xproto.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[sel] = owner
}

// count returns how many requests named name were made against win.
func (f *fakeConn) count(name string, win xproto.Window) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range f.ops {
		if op.name == name && op.window == win {
			n++
		}
	}
	return n
}

// opNames returns the names of requests made against win, in order.
func (f *fakeConn) opNames(win xproto.Window) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, op := range f.ops {
		if op.window == win {
			out = append(out, op.name)
		}
	}
	return out
}

// lastOp returns the most recent request named name against win.
func (f *fakeConn) lastOp(name string, win xproto.Window) (fakeOp, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range slices.Backward(f.ops) {
		if op.name == name && op.window == win {
			return op, true
		}
	}
	return fakeOp{}, false
}

func (f *fakeConn) resetOps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
	f.sent = nil
}

// clientMessages decodes every client message sent to dest with type typ.
func (f *fakeConn) clientMessages(dest xproto.Window, typ string) []xproto.ClientMessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	atom := f.atomLocked(typ)
	var out []xproto.ClientMessageEvent
	for _, s := range f.sent {
		if s.dest != dest || s.event[0]&0x7f != xproto.ClientMessage {
			continue
		}
		ev, ok := xproto.ClientMessageEventNew(s.event).(xproto.ClientMessageEvent)
		if ok && ev.Type == atom {
			out = append(out, ev)
		}
	}
	return out
}

// configureNotifies decodes every ConfigureNotify sent to dest.
func (f *fakeConn) configureNotifies(dest xproto.Window) []xproto.ConfigureNotifyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []xproto.ConfigureNotifyEvent
	for _, s := range f.sent {
		if s.dest != dest || s.event[0]&0x7f != xproto.ConfigureNotify {
			continue
		}
		if ev, ok := xproto.ConfigureNotifyEventNew(s.event).(xproto.ConfigureNotifyEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) Root() xproto.Window { return fakeRoot }
func (f *fakeConn) RootVisual() xproto.Visualid { return fakeVisual }
func (f *fakeConn) DefaultScreen() int { return 0 }
func (f *fakeConn) InternAtom(name string) (xproto.Atom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOp["intern"]; err != nil {
		return 0, err
	}
	return f.atomLocked(name), nil
}

func (f *fakeConn) CreateWindow(x, y int16, width, height uint16, mask uint32, values []uint32) (xproto.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	win := f.nextID
	if err := f.record("create", win, append([]uint32{uint32(x), uint32(y), uint32(width), uint32(height), mask}, values...)...); err != nil {
		return 0, err
	}
	f.windows[win] = &fakeWindow{parent: fakeRoot}
	return win, nil
}

func (f *fakeConn) DestroyWindow(win xproto.Window) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("destroy", win); err != nil {
		return err
	}
	delete(f.windows, win)
	for sel, owner := range f.owners {
		if owner == win {
			f.owners[sel] = xproto.WindowNone
		}
	}
	return nil
}

func (f *fakeConn) setMapped(name string, win xproto.Window, mapped bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(name, win); err != nil {
		return err
	}
	w, ok := f.windows[win]
	if !ok {
		return errBadWindow
	}
	w.mapped = mapped
	return nil
}

func (f *fakeConn) MapWindow(win xproto.Window) error { return f.setMapped("map", win, true) }
func (f *fakeConn) UnmapWindow(win xproto.Window) error { return f.setMapped("unmap", win, false) }

func (f *fakeConn) ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error {
	f.mu.Lock()
	err := f.record("configure", win, append([]uint32{uint32(mask)}, values...)...)
	if err == nil {
		if _, ok := f.windows[win]; !ok {
			err = errBadWindow
		}
	}
	hook := f.onConfigure
	f.mu.Unlock()
	if err == nil && hook != nil {
		hook(win)
	}
	return err
}

func (f *fakeConn) ChangeWindowAttributes(win xproto.Window, mask uint32, values []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("attributes", win, append([]uint32{mask}, values...)...); err != nil {
		return err
	}
	if _, ok := f.windows[win]; !ok {
		return errBadWindow
	}
	return nil
}

func (f *fakeConn) ReparentWindow(win, parent xproto.Window, x, y int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("reparent", win, uint32(parent), uint32(x), uint32(y)); err != nil {
		return err
	}
	w, ok := f.windows[win]
	if !ok {
		return errBadWindow
	}
	w.parent = parent
	return nil
}

func (f *fakeConn) ChangeSaveSet(mode byte, win xproto.Window) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("saveset", win, uint32(mode))
}

func (f *fakeConn) ClearArea(win xproto.Window) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("clear", win)
}

func (f *fakeConn) SelectionOwner(sel xproto.Atom) (xproto.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOp["get-owner"]; err != nil {
		return 0, err
	}
	if f.stolenBy != xproto.WindowNone {
		return f.stolenBy, nil
	}
	return f.owners[sel], nil
}

func (f *fakeConn) SetSelectionOwner(owner xproto.Window, sel xproto.Atom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("set-owner", owner, uint32(sel)); err != nil {
		return err
	}
	f.owners[sel] = owner
	return nil
}

func (f *fakeConn) SendEvent(dest xproto.Window, mask uint32, event []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("send", dest, mask); err != nil {
		return err
	}
	f.sent = append(f.sent, sentEvent{dest: dest, mask: mask, event: slices.Clone(event)})
	return nil
}

func (f *fakeConn) GetProperty(win xproto.Window, property xproto.Atom) (*xproto.GetPropertyReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get-property", win, uint32(property)); err != nil {
		return nil, err
	}
	if _, ok := f.windows[win]; !ok {
		return nil, errBadWindow
	}
	values, ok := f.props[win][property]
	if !ok {
		return &xproto.GetPropertyReply{}, nil
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		xgb.Put32(buf[4*i:], v)
	}
	return &xproto.GetPropertyReply{
		Format:   32,
		Type:     property,
		ValueLen: uint32(len(values)),
		Value:    buf,
	}, nil
}

func (f *fakeConn) ChangeProperty32(win xproto.Window, property, typ xproto.Atom, values ...uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("change-property", win, append([]uint32{uint32(property), uint32(typ)}, values...)...); err != nil {
		return err
	}
	f.setPropLocked(win, property, values...)
	return nil
}

func (f *fakeConn) SetHints(win xproto.Window, hints Hints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("hints", win); err != nil {
		return err
	}
	f.hints[win] = hints
	return nil
}

func (f *fakeConn) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

// fakeHost records slot reports and visibility subscriptions.
type fakeHost struct {
	visibility   func(bool)
	slots        []int
	unsubscribed int
}

func (h *fakeHost) ReportSlots(n int) { h.slots = append(h.slots, n) }

func (h *fakeHost) SubscribeVisibility(fn func(bool)) func() {
	h.visibility = fn
	return func() {
		h.visibility = nil
		h.unsubscribed++
	}
}

func (h *fakeHost) lastSlots() int {
	if len(h.slots) == 0 {
		return -1
	}
	return h.slots[len(h.slots)-1]
}

var testSettings = Settings{
	Height:     24,
	IconWidth:  16,
	IconHeight: 16,
	Spacing:    2,
	Align:      AlignRight,
	OrigX:      1000,
	OrigY:      0,
	Background: 0x222222,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager returns a bootstrapped manager over a fresh fake. The
// grace delay never fires unless the test sends on the returned channel.
func newTestManager(s Settings) (*Manager, *fakeConn, *fakeHost, chan time.Time) {
	conn := newFakeConn()
	host := &fakeHost{}
	grace := make(chan time.Time)
	m := New(conn, Options{
		Host:   host,
		Logger: quietLogger(),
		After:  func(time.Duration) <-chan time.Time { return grace },
		Pid:    4242,
	})
	if err := m.Bootstrap(s); err != nil {
		panic(fmt.Sprintf("Bootstrap: %v", err))
	}
	return m, conn, host, grace
}

// dock sends a dock request for win and acknowledges the resulting map like
// the server would.
func dock(m *Manager, conn *fakeConn, win xproto.Window) {
	m.Dispatch(ClientMessageEvent{
		Window: m.Container(),
		Type:   conn.atom("_NET_SYSTEM_TRAY_OPCODE"),
		Format: 32,
		Data:   [5]uint32{0, OpcodeRequestDock, uint32(win)},
	})
	if conn.isMapped(win) {
		m.Dispatch(MapNotifyEvent{Window: win})
	}
	if conn.isMapped(m.Container()) && !m.mapped {
		m.Dispatch(MapNotifyEvent{Window: m.Container()})
	}
}
