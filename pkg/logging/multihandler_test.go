package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandlerEnabled(t *testing.T) {
	text := func(level slog.Level) slog.Handler {
		return slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: level})
	}
	tests := []struct {
		name     string
		handlers []slog.Handler
		want     bool
	}{
		{"none", nil, false},
		{"all above level", []slog.Handler{text(slog.LevelError), text(slog.LevelWarn)}, false},
		{"one enabled", []slog.Handler{text(slog.LevelDebug), text(slog.LevelError)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMultiHandler(tt.handlers...).Enabled(context.Background(), slog.LevelInfo); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var info, errOnly bytes.Buffer
	logger := slog.New(NewMultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	))

	logger.With("component", "tray").WithGroup("client").Info("[TRAY] docked", "window", "0x0400001")

	if got := info.String(); !strings.Contains(got, "[TRAY] docked") ||
		!strings.Contains(got, "component=tray") || !strings.Contains(got, "client.window=0x0400001") {
		t.Errorf("info output = %q", got)
	}
	if errOnly.Len() != 0 {
		t.Errorf("error-only handler wrote %q", errOnly.String())
	}
}

func TestMultiHandlerKeepsGoingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	good := slog.NewTextHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{good}, good)

	r := slog.NewRecord(timeZero, slog.LevelInfo, "hello", 0)
	if err := h.Handle(context.Background(), r); err == nil {
		t.Error("Handle() = nil, want the failing handler's error")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("second handler output = %q", buf.String())
	}
}

func TestMultiHandlerEmptyGroup(t *testing.T) {
	h := NewMultiHandler()
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("WithGroup(\"\") returned a new handler")
	}
}
