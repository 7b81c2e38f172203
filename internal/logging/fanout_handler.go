package logging

import (
	"context"
	"errors"
	"log/slog"
)

// sinkHandler writes each record to every sink that accepts its level. The
// daemon uses it to send the same records to the console and to the
// experimenter log file.
type sinkHandler struct {
	sinks []slog.Handler
}

// newFanoutHandler drops nil sinks and skips the wrapper when at most one remains.
func newFanoutHandler(sinks ...slog.Handler) slog.Handler {
	live := make([]slog.Handler, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return &sinkHandler{sinks: live}
}

func (h *sinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle reports every sink failure; a broken log file does not hide
// console errors.
func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	return h.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *sinkHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		next[i] = fn(sink)
	}
	return &sinkHandler{sinks: next}
}
