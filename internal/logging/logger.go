package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"experimenter/internal/config"
)

// LogFileName is the file written under the configured log directory.
const LogFileName = "experimenter.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives the primary stream. Defaults to stderr.
	Output io.Writer
	// FilePath, when set, additionally receives JSON lines regardless of Format.
	FilePath    string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(out, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(out, levelVar, addSource, colorEnabled(out))
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var file slog.Handler
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		file = newJSONHandler(f, levelVar, addSource)
	}

	return slog.New(newFanoutHandler(primary, file)), nil
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.FilePath = filepath.Join(dir, LogFileName)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
