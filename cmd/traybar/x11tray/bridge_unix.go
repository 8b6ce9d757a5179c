//go:build linux || freebsd || openbsd || netbsd || dragonfly || solaris || illumos || aix

// Package x11tray bridges StatusNotifierItem applications into the XEMBED tray.
// Applications that only publish StatusNotifierItems over D-Bus are invisible
// to an XEMBED tray; snixembed re-exposes them as dockable icons.
package x11tray

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
)

const statusNotifierWatcher = "org.kde.StatusNotifierWatcher"

// settle is how long snixembed gets to claim the watcher name.
var settle = 500 * time.Millisecond

// WatcherAvailable reports whether a StatusNotifierWatcher owns its name on
// the session bus.
func WatcherAvailable() (bool, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false, fmt.Errorf("connect to session bus: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("[X11TRAY] Failed to close D-Bus connection", "error", err)
		}
	}()

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false, fmt.Errorf("list bus names: %w", err)
	}
	return slices.Contains(names, statusNotifierWatcher), nil
}

// ProxyProcess is a running snixembed.
type ProxyProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// Stop terminates the proxy.
func (p *ProxyProcess) Stop() error {
	if p == nil {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		_ = p.cmd.Wait() //nolint:errcheck // exit status after kill is expected
	}
	return nil
}

// StartBridge starts snixembed and waits for it to register the watcher.
func StartBridge(ctx context.Context) (*ProxyProcess, error) {
	path, err := exec.LookPath("snixembed")
	if err != nil {
		return nil, errors.New("snixembed not found in PATH: install it with your package manager " +
			"(e.g., 'apt install snixembed' or 'yay -S snixembed')")
	}

	slog.Info("[X11TRAY] Starting snixembed bridge", "path", path)

	proxyCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(proxyCtx, path)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start snixembed: %w", err)
	}
	proxy := &ProxyProcess{cmd: cmd, cancel: cancel}

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		if stopErr := proxy.Stop(); stopErr != nil {
			slog.Debug("[X11TRAY] Failed to stop bridge", "error", stopErr)
		}
		return nil, ctx.Err()
	}

	ok, err := WatcherAvailable()
	if err == nil && !ok {
		err = errors.New(statusNotifierWatcher + " still not registered")
	}
	if err != nil {
		if stopErr := proxy.Stop(); stopErr != nil {
			slog.Debug("[X11TRAY] Failed to stop bridge after failed check", "error", stopErr)
		}
		return nil, fmt.Errorf("snixembed started but watcher unavailable: %w", err)
	}

	slog.Info("[X11TRAY] snixembed bridge running")
	return proxy, nil
}

// EnsureBridge starts snixembed unless a watcher is already present.
// A nil proxy with a nil error means none was needed.
func EnsureBridge(ctx context.Context) (*ProxyProcess, error) {
	ok, err := WatcherAvailable()
	if err != nil {
		return nil, err
	}
	if ok {
		slog.Debug("[X11TRAY] StatusNotifierWatcher already present")
		return nil, nil //nolint:nilnil // nil proxy is valid when a watcher exists
	}
	proxy, err := StartBridge(ctx)
	if err != nil {
		return nil, fmt.Errorf("no StatusNotifierWatcher and bridge failed: %w", err)
	}
	return proxy, nil
}
