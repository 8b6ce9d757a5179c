// Package busapi exports tray state on the D-Bus session bus.
//
// Object /org/codegroove/Traybar1 implements org.codegroove.Traybar1:
//
//	Manage() -> bool     re-take the systray selection
//	GetSlots() -> int32  number of mapped tray icons
//
// and carries the read-only properties Slots (int32) and Active (bool).
package busapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// Bus names.
const (
	Name      = "org.codegroove.Traybar1"
	Interface = Name
	Path      = dbus.ObjectPath("/org/codegroove/Traybar1")
)

const manageTimeout = 5 * time.Second

// ManageFunc activates the tray and reports whether it now owns the
// selection.
type ManageFunc func(ctx context.Context) (bool, error)

// Service is the exported D-Bus object.
type Service struct {
	conn   *dbus.Conn
	log    *slog.Logger
	manage ManageFunc
	props  *prop.Properties
	mu     sync.Mutex
	slots  int32
	active bool
}

// New returns a service that has not claimed its bus name yet.
func New(conn *dbus.Conn, manage ManageFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conn: conn, manage: manage, log: logger}
}

// Listen claims the bus name and exports the object.
func (s *Service) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.conn.RequestName(Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", Name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", Name)
	}

	if err := s.conn.Export(methods{s}, Path, Interface); err != nil {
		return fmt.Errorf("export %s: %w", Interface, err)
	}

	props, err := prop.Export(s.conn, Path, prop.Map{
		Interface: {
			"Slots":  {Value: s.slots, Emit: prop.EmitTrue},
			"Active": {Value: s.active, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: string(Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       Interface,
				Methods:    introspect.Methods(methods{}),
				Properties: props.Introspection(Interface),
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), Path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	s.log.Info("[DBUS] Status service listening", "name", Name, "path", Path)
	return nil
}

// Close releases the bus name. The connection belongs to the caller.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.props == nil {
		return nil
	}
	s.props = nil
	if _, err := s.conn.ReleaseName(Name); err != nil {
		return fmt.Errorf("release name %s: %w", Name, err)
	}
	return nil
}

// SetSlots records the mapped icon count, emitting a change signal.
func (s *Service) SetSlots(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = int32(n) //nolint:gosec // icon counts are small
	if s.props != nil {
		s.props.SetMust(Interface, "Slots", s.slots)
	}
}

// SetActive records whether the tray owns the selection.
func (s *Service) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
	if s.props != nil {
		s.props.SetMust(Interface, "Active", active)
	}
}

// Slots returns the last recorded icon count.
func (s *Service) Slots() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots
}

// methods holds the exported D-Bus methods.
type methods struct{ s *Service }

// Manage re-activates the tray. It waits for the dispatch loop to run the
// activation.
func (m methods) Manage() (bool, *dbus.Error) {
	m.s.log.Info("[DBUS] Manage requested")
	ctx, cancel := context.WithTimeout(context.Background(), manageTimeout)
	defer cancel()
	ok, err := m.s.manage(ctx)
	if err != nil {
		m.s.log.Warn("[DBUS] Manage failed", "error", err)
		return false, dbus.MakeFailedError(err)
	}
	return ok, nil
}

// GetSlots returns the number of mapped tray icons.
func (m methods) GetSlots() (int32, *dbus.Error) {
	return m.s.Slots(), nil
}
