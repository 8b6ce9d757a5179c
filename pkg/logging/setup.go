package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Options configure Setup.
type Options struct {
	// Stderr receives console output. Defaults to os.Stderr.
	Stderr io.Writer
	// Now stamps the log file name. Defaults to time.Now.
	Now func() time.Time
	// App names the log directory and file prefix.
	App string
	// Dir overrides the log directory, normally <user cache dir>/<app>/logs.
	Dir   string
	Debug bool
}

// Setup installs the default slog logger. Output goes to stderr and, when the
// log directory is usable, to <dir>/<app>-YYYY-MM-DD.log. It returns the log
// file path ("" when file logging is unavailable) and a func closing the file.
func Setup(opts Options) (path string, closeFn func() error, err error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{AddSource: opts.Debug, Level: level}
	console := slog.NewTextHandler(opts.Stderr, hopts)
	slog.SetDefault(slog.New(console))
	closeFn = func() error { return nil }

	dir := opts.Dir
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", closeFn, fmt.Errorf("get user cache dir: %w", err)
		}
		dir = filepath.Join(cache, opts.App, "logs")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", closeFn, fmt.Errorf("create log directory: %w", err)
	}

	path = filepath.Join(dir, fmt.Sprintf("%s-%s.log", opts.App, opts.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return "", closeFn, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(NewMultiHandler(console, slog.NewTextHandler(f, hopts))))
	return path, f.Close, nil
}
