package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRoutesByLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to accept debug when one handler does")
	}

	logger := slog.New(h)
	logger.Debug("debug only")
	if infoBuf.Len() != 0 {
		t.Fatal("info handler should not receive debug records")
	}
	if debugBuf.Len() == 0 {
		t.Fatal("debug handler should receive debug records")
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("experiment", "pref-flip")}).WithGroup("task"))
	logger.Info("claimed", slog.String("kind", "send_review_email"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		for _, want := range []string{`"experiment":"pref-flip"`, `"task":{"kind":"send_review_email"}`} {
			if !bytes.Contains(buf.Bytes(), []byte(want)) {
				t.Fatalf("handler %d output %q missing %s", i, buf.String(), want)
			}
		}
	}
}

type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func TestFanoutHandlerJoinsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	fileErr := errors.New("log file closed")
	consoleErr := errors.New("console gone")
	h := newFanoutHandler(
		failingHandler{Handler: slog.NewJSONHandler(&buf, nil), err: consoleErr},
		slog.NewJSONHandler(&buf, nil),
		failingHandler{Handler: slog.NewJSONHandler(&buf, nil), err: fileErr},
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "daemon started", 0))
	if !errors.Is(err, fileErr) || !errors.Is(err, consoleErr) {
		t.Fatalf("expected both sink errors, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("daemon started")) {
		t.Fatal("expected the healthy sink to still receive the record")
	}
}
