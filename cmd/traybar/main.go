// Package main runs traybar: a minimal X11 bar whose job is hosting a
// freedesktop system tray.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/godbus/dbus/v5"

	"github.com/codeGROOVE-dev/traybar/cmd/traybar/x11tray"
	"github.com/codeGROOVE-dev/traybar/internal/bar"
	"github.com/codeGROOVE-dev/traybar/internal/busapi"
	"github.com/codeGROOVE-dev/traybar/internal/tray"
	"github.com/codeGROOVE-dev/traybar/internal/xconn"
	"github.com/codeGROOVE-dev/traybar/pkg/appsettings"
	"github.com/codeGROOVE-dev/traybar/pkg/logging"
	"github.com/codeGROOVE-dev/traybar/pkg/preview"
)

// Version information, set during build with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "traybar"

// Nominal screen used for -preview, which runs without a display.
const (
	previewScreenWidth  = 1920
	previewScreenHeight = 1080
)

var errTrayDisabled = errors.New("tray disabled with -no-tray")

type options struct {
	display        string
	configPath     string
	previewPath    string
	previewClients int
	debug          bool
	showVersion    bool
	noTray         bool
	noBridge       bool
	noDBus         bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.display, "display", "", "X display to connect to (defaults to $DISPLAY)")
	fs.StringVar(&o.configPath, "config", "", "Settings file (defaults to <config dir>/traybar/settings.json)")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "Show version information and exit")
	fs.BoolVar(&o.noTray, "no-tray", false, "Run the bar without managing the system tray")
	fs.BoolVar(&o.noBridge, "no-bridge", false, "Do not start snixembed for StatusNotifierItem applications")
	fs.BoolVar(&o.noDBus, "no-dbus", false, "Do not export tray status on the session bus")
	fs.StringVar(&o.previewPath, "preview", "", "Render the tray layout to this PNG file and exit")
	fs.IntVar(&o.previewClients, "preview-clients", 3, "Number of icons drawn by -preview")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.previewClients < 0 {
		return o, fmt.Errorf("invalid -preview-clients %d", o.previewClients)
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("traybar version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		return
	}

	logPath, closeLog, err := logging.Setup(logging.Options{App: appName, Debug: opts.debug})
	if err != nil {
		slog.Warn("File logging unavailable", "error", err)
	} else {
		slog.Info("Logging to file", "path", logPath)
	}
	slog.Info("Starting traybar", "version", version, "commit", commit, "date", date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts)
	stop()

	code := 0
	if err != nil {
		slog.Error("traybar exited with error", "error", err)
		code = 1
	}
	if cerr := closeLog(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close log file:", cerr)
	}
	os.Exit(code)
}

// loadSettings reads the settings file, falling back to defaults.
func loadSettings(path string, log *slog.Logger) (Settings, error) {
	m := appsettings.NewManager(appName)
	if path != "" {
		m = appsettings.NewFileManager(path)
	}
	s := defaultSettings()
	found, err := m.Load(&s)
	if err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		p, _ := m.Path() //nolint:errcheck // only used for the log line
		log.Info("No settings file, using defaults", "path", p)
	}
	s.normalize(log)
	return s, nil
}

// writePreview renders the tray layout for s on a nominal screen.
func writePreview(s Settings, path string, clients int) error {
	cfg, err := s.barConfig()
	if err != nil {
		return err
	}
	rect := bar.Geometry(cfg, previewScreenWidth, previewScreenHeight)
	rect.Y = 0
	ts, err := s.traySettings(rect, xproto.WindowNone)
	if err != nil {
		return err
	}
	img, err := preview.Render(ts, preview.Options{Width: int(rect.Width), Clients: clients, Scale: 1})
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	if err := os.WriteFile(path, img, 0o600); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	slog.Info("Wrote tray layout preview", "path", path, "clients", clients)
	return nil
}

func run(ctx context.Context, opts options) error {
	log := slog.Default()
	s, err := loadSettings(opts.configPath, log)
	if err != nil {
		return err
	}
	if opts.previewPath != "" {
		return writePreview(s, opts.previewPath, opts.previewClients)
	}

	conn, err := xconn.Dial(ctx, opts.display)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg, err := s.barConfig()
	if err != nil {
		return err
	}
	b := bar.New(conn, cfg, log)
	if err := b.Create(); err != nil {
		return err
	}
	defer b.Close()

	l := newLoop(conn, log, b.Handle)

	var (
		mgr *tray.Manager
		svc *busapi.Service
	)
	if !opts.noTray {
		ts, err := s.traySettings(b.Rect(), b.Window())
		if err != nil {
			return err
		}
		notes := newNotifier(log)
		mgr = tray.New(conn, tray.Options{
			Host:   b,
			Logger: log,
			OnChange: func(c tray.Change) {
				notes.changed(c)
				if svc != nil {
					svc.SetActive(c == tray.Activated)
				}
			},
		})
		if err := mgr.Bootstrap(ts); err != nil {
			return fmt.Errorf("bootstrap tray: %w", err)
		}
		defer mgr.Close()
		l.handlers = append(l.handlers, mgr.Dispatch)

		if err := mgr.Activate(); err != nil {
			log.Error("[TRAY] Tray inactive, another manager may own it", "error", err)
		}
	}

	if !opts.noDBus {
		var stopService func()
		svc, stopService = startService(l, mgr, b, log)
		if svc != nil {
			defer stopService()
			svc.SetActive(mgr != nil && mgr.State() != tray.Inactive)
		}
	}

	if mgr != nil && !opts.noBridge {
		proxy, err := x11tray.EnsureBridge(ctx)
		if err != nil {
			log.Warn("[X11TRAY] StatusNotifierItem applications will not appear in the tray", "error", err)
		}
		defer func() {
			if err := proxy.Stop(); err != nil {
				log.Debug("[X11TRAY] Failed to stop bridge", "error", err)
			}
		}()
	}

	err = l.run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Shutting down")
		return nil
	}
	return err
}

// startService exports tray status on the session bus. It returns a nil
// service when the bus is unavailable.
func startService(l *loop, mgr *tray.Manager, b *bar.Bar, log *slog.Logger) (*busapi.Service, func()) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Warn("[DBUS] Session bus unavailable, status service disabled", "error", err)
		return nil, nil
	}

	svc := busapi.New(conn, func(ctx context.Context) (bool, error) {
		if mgr == nil {
			return false, errTrayDisabled
		}
		var aerr error
		var active bool
		if err := l.call(ctx, func() {
			aerr = mgr.Activate()
			active = mgr.State() != tray.Inactive
		}); err != nil {
			return false, err
		}
		return active, aerr
	}, log)

	if err := svc.Listen(); err != nil {
		log.Warn("[DBUS] Status service disabled", "error", err)
		if cerr := conn.Close(); cerr != nil {
			log.Debug("[DBUS] Failed to close connection", "error", cerr)
		}
		return nil, nil
	}
	svc.SetSlots(b.Slots())
	b.OnSlots(svc.SetSlots)
	return svc, func() {
		if err := svc.Close(); err != nil {
			log.Debug("[DBUS] Failed to release name", "error", err)
		}
		if err := conn.Close(); err != nil {
			log.Debug("[DBUS] Failed to close connection", "error", err)
		}
	}
}
