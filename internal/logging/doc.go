// Package logging assembles structured slog loggers and formatting helpers used
// across Experimenter services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers and background tasks
// automatically tag log lines with request IDs, experiment slugs, acting users,
// and task IDs. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
