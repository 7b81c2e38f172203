package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"experimenter/internal/api"
	"experimenter/internal/config"
	"experimenter/internal/logging"
	"experimenter/internal/metrics"
	"experimenter/internal/notifications"
	"experimenter/internal/services/bugzilla"
	"experimenter/internal/services/email"
	"experimenter/internal/store"
	"experimenter/internal/tasks"
	"experimenter/internal/web"
)

// ErrConfigChanged ends a run when the watched configuration file changes.
var ErrConfigChanged = errors.New("configuration file changed")

// Options supplies optional collaborators. Zero values select the real
// SMTP mailer and Bugzilla client built from configuration.
type Options struct {
	ConfigPath string
	// PIDPath, when set, receives the process id once the lock is held.
	PIDPath    string
	Version    web.VersionInfo
	Mailer     email.Mailer
	Bugs       tasks.BugTracker
}

// Daemon runs the task worker and web server against one store.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	worker     *tasks.Worker
	server     *web.Server
	configPath string
	pidPath    string

	lockPath string
	lock     *flock.Flock

	active  atomic.Bool
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Tasks        map[store.TaskStatus]int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with every service wired to st.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	mailer := opts.Mailer
	if mailer == nil {
		mailer = email.NewSMTPMailer(cfg)
	}
	bugs := opts.Bugs
	if bugs == nil {
		bugs = bugzilla.NewClient(cfg)
	}

	reg := metrics.New()
	notifier := notifications.NewService(st)

	worker := tasks.NewWorker(cfg, st, logger, tasks.WithMetrics(reg))
	tasks.NewHandlers(cfg, st, mailer, bugs, notifier, logger).Register(worker)

	queue := tasks.NewQueue(st, cfg.Tasks.MaxAttempts)
	svc := api.NewExperimentService(cfg, st, queue, reg, logger)
	server, err := web.New(cfg, web.Deps{
		Experiments:   svc,
		Directory:     st,
		Notifications: notifier,
		Metrics:       reg,
		Logger:        logger,
		Version:       opts.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("build web server: %w", err)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		worker:     worker,
		server:     server,
		configPath: opts.ConfigPath,
		pidPath:    opts.PIDPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Run holds the daemon lock and serves until ctx is done, a component
// fails, or the configuration file changes.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.active.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.active.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another experimenter daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if d.pidPath != "" {
		if err := writePIDFile(d.pidPath); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(d.pidPath)
	}

	runCtx := ctx
	if d.configPath != "" {
		watched, stop, err := untilModified(ctx, d.configPath)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer stop()
		runCtx = watched
	}

	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("experimenter daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Server.Bind),
		logging.String(logging.FieldEventType, "daemon_started"),
	)

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return d.worker.Run(groupCtx) })
	group.Go(func() error { return d.server.Start(groupCtx) })
	err = group.Wait()

	if cause := context.Cause(runCtx); errors.Is(cause, ErrConfigChanged) && ctx.Err() == nil {
		d.logger.Info("configuration changed, stopping for restart",
			logging.String("config", d.configPath),
			logging.String(logging.FieldEventType, "config_changed"),
		)
		return cause
	}
	d.logger.Info("experimenter daemon stopped")
	return err
}

// Status reports whether Run holds the lock along with task queue counts.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	counts, err := d.store.TaskCounts(ctx)
	if err != nil {
		d.logger.Warn("task counts unavailable", logging.Error(err))
	}
	status.Tasks = counts
	return status
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
