//go:build !linux && !freebsd && !openbsd && !netbsd && !dragonfly && !solaris && !illumos && !aix

package x11tray

import "context"

// WatcherAvailable always reports true where there is no XEMBED tray.
func WatcherAvailable() (bool, error) {
	return true, nil
}

// ProxyProcess is unused on this platform.
type ProxyProcess struct{}

// Stop is a no-op.
func (*ProxyProcess) Stop() error {
	return nil
}

// StartBridge is a no-op.
func StartBridge(context.Context) (*ProxyProcess, error) {
	return &ProxyProcess{}, nil
}

// EnsureBridge is a no-op.
func EnsureBridge(context.Context) (*ProxyProcess, error) {
	return &ProxyProcess{}, nil
}
