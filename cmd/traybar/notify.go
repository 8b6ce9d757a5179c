package main

import (
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
	"github.com/codeGROOVE-dev/traybar/pkg/dedup"
)

const (
	notifyPeriod  = time.Minute
	notifyMaxKeys = 16
)

// notifier turns tray ownership changes into desktop notifications, at most
// one per kind per minute.
type notifier struct {
	send  func(title, message, icon string) error
	now   func() time.Time
	seen  *dedup.Window
	log  *slog.Logger
	lost bool
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{
		send: func(title, message, icon string) error { return beeep.Notify(title, message, icon) },
		now:  time.Now,
		seen: dedup.New(notifyPeriod, notifyMaxKeys),
		log:  logger,
	}
}

// changed is installed as tray.Options.OnChange.
func (n *notifier) changed(c tray.Change) {
	var msg string
	switch c {
	case tray.SelectionLost:
		n.lost = true
		msg = "Another program took over the system tray."
	case tray.Activated:
		if !n.lost {
			return
		}
		n.lost = false
		msg = "The system tray is back."
	default:
		return
	}

	if !n.seen.Allow(c.String(), n.now()) {
		n.log.Debug("[NOTIFY] Suppressed duplicate notification", "change", c)
		return
	}
	if err := n.send("traybar", msg, ""); err != nil {
		n.log.Warn("[NOTIFY] Failed to send notification", "error", err)
	}
}
