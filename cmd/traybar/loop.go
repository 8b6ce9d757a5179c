package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/BurntSushi/xgb"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
	"github.com/codeGROOVE-dev/traybar/internal/xconn"
)

// errConnClosed is returned by run when the X connection goes away.
var errConnClosed = errors.New("X connection closed")

const slowDispatch = time.Second

type eventSource interface {
	WaitForEvent() (xgb.Event, error)
}

// loop serializes everything touching the tray manager onto one goroutine.
type loop struct {
	src      eventSource
	log      *slog.Logger
	posted   chan func()
	handlers []func(tray.Event)
}

func newLoop(src eventSource, logger *slog.Logger, handlers ...func(tray.Event)) *loop {
	return &loop{
		src:      src,
		log:      logger,
		posted:   make(chan func()),
		handlers: handlers,
	}
}

// post runs fn on the dispatch goroutine.
func (l *loop) post(ctx context.Context, fn func()) error {
	select {
	case l.posted <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the dispatch goroutine and waits for it to finish.
func (l *loop) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.post(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run dispatches events until ctx is done or the connection closes.
func (l *loop) run(ctx context.Context) error {
	events := make(chan xgb.Event)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			ev, err := l.src.WaitForEvent()
			if ev == nil && err == nil {
				return
			}
			if err != nil {
				l.log.Debug("[XCONN] Asynchronous X error", "error", err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return errConnClosed
		case fn := <-l.posted:
			l.safeDispatch("posted", fn)
		case raw := <-events:
			ev, ok := xconn.Translate(raw)
			if !ok {
				continue
			}
			for _, h := range l.handlers {
				l.safeDispatch(fmt.Sprintf("%T", ev), func() { h(ev) })
			}
		}
	}
}

// safeDispatch runs fn with panic recovery so one bad event never stops the
// loop.
func (l *loop) safeDispatch(operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("[RELIABILITY] Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	fn()
	if d := time.Since(start); d > slowDispatch {
		l.log.Warn("[RELIABILITY] Slow operation", "operation", operation, "duration", d)
	}
}
