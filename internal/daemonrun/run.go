package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"experimenter/internal/config"
	"experimenter/internal/daemon"
	"experimenter/internal/logging"
	"experimenter/internal/store"
	"experimenter/internal/web"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	ConfigPath  string
	Version     web.VersionInfo
}

// Run starts the experimenter daemon and blocks until SIGINT, SIGTERM, or a
// configuration change.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		FilePath:    filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg, opts)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	d, err := daemon.New(cfg, st, logger, daemon.Options{
		ConfigPath: opts.ConfigPath,
		PIDPath:    filepath.Join(cfg.Paths.DataDir, "experimenter.pid"),
		Version:    opts.Version,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Run(signalCtx); err != nil {
		logger.Warn("daemon exited",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_exited"),
		)
		return err
	}
	logger.Info("experimenter daemon shut down")
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, opts Options) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("config_path", opts.ConfigPath),
		logging.String("version", opts.Version.Version),
		logging.String("bind", cfg.Server.Bind),
		logging.String("hostname", cfg.Server.Hostname),
		logging.String("database", cfg.DatabasePath()),
		logging.String("bugzilla_host", cfg.Bugzilla.Host),
		logging.Bool("bugzilla_key_present", strings.TrimSpace(cfg.Bugzilla.APIKey) != ""),
		logging.Bool("smtp_configured", strings.TrimSpace(cfg.Email.Host) != ""),
		logging.Bool("jwt_enabled", strings.TrimSpace(cfg.Server.JWTSecret) != ""),
	)
}
