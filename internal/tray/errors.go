package tray

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
)

var (
	// ErrAcquisitionFailed is returned when the systray selection could not
	// be claimed. It aborts one activation attempt, never the process.
	ErrAcquisitionFailed = errors.New("failed to get control of the systray selection")

	// ErrSetupFailed is returned when the container window could not be
	// created or hinted.
	ErrSetupFailed = errors.New("failed to set up tray window")

	// ErrAlreadyInProgress is returned by Reconfigure when another
	// reconfigure holds the guard.
	ErrAlreadyInProgress = errors.New("reconfigure already in progress")

	// ErrNoEmbedInfo is returned when a window carries no usable
	// _XEMBED_INFO property.
	ErrNoEmbedInfo = errors.New("missing or malformed _XEMBED_INFO")
)

// WindowError is a failed operation against one specific client window.
// The manager handles it by removing the client, never by retrying.
type WindowError struct {
	Err    error
	Op     string
	Window xproto.Window
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, windowID(e.Window), e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

func windowErr(win xproto.Window, op string, err error) error {
	if err == nil {
		return nil
	}
	return &WindowError{Window: win, Op: op, Err: err}
}

// windowID formats a window handle the way xprop and xwininfo print it.
func windowID(win xproto.Window) string {
	return fmt.Sprintf("0x%07x", uint32(win))
}
