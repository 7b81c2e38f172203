package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"experimenter/internal/config"
	"experimenter/internal/logging"
	"experimenter/internal/metrics"
	"experimenter/internal/services"
	"experimenter/internal/store"
)

// Store is the persistence surface the worker needs.
type Store interface {
	ClaimNext(ctx context.Context) (*store.Task, error)
	Heartbeat(ctx context.Context, id int64) error
	CompleteTask(ctx context.Context, id int64) error
	FailTask(ctx context.Context, t *store.Task, cause error, retry bool, backoff time.Duration) (store.TaskStatus, error)
	ReclaimStaleTasks(ctx context.Context, timeout time.Duration) (int64, error)
	TaskCounts(ctx context.Context) (map[store.TaskStatus]int, error)
}

// Handler runs one task. Returning an error records a failed attempt.
type Handler func(ctx context.Context, task *store.Task) error

// Worker polls the store and dispatches tasks by kind.
type Worker struct {
	store             Store
	logger            *slog.Logger
	metrics           *metrics.Registry
	handlers          map[string]Handler
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	retryBackoff      time.Duration
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithMetrics records task outcomes on reg.
func WithMetrics(reg *metrics.Registry) WorkerOption {
	return func(w *Worker) {
		w.metrics = reg
	}
}

// WithIntervals overrides the poll interval, heartbeat timeout, and retry backoff.
func WithIntervals(poll, heartbeatTimeout, backoff time.Duration) WorkerOption {
	return func(w *Worker) {
		w.pollInterval = poll
		w.heartbeatTimeout = heartbeatTimeout
		w.retryBackoff = backoff
	}
}

// NewWorker builds a worker using the [tasks] configuration.
func NewWorker(cfg *config.Config, st Store, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Worker{
		store:            st,
		logger:           logging.NewComponentLogger(logger, "tasks"),
		handlers:         make(map[string]Handler),
		pollInterval:     cfg.TaskPollInterval(),
		heartbeatTimeout: cfg.TaskHeartbeatTimeout(),
		retryBackoff:     cfg.TaskRetryBackoff(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	w.heartbeatInterval = w.heartbeatTimeout / 3
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = 10 * time.Second
	}
	return w
}

// Handle registers h for kind, replacing any previous handler.
func (w *Worker) Handle(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("task worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Int("handlers", len(w.handlers)),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("task worker stopped")
			return nil
		default:
		}

		processed, err := w.RunOnce(ctx)
		if errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			w.logger.Error("task poll failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "task_poll_failed"),
			)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce reclaims stale tasks and runs at most one runnable task. It
// reports whether a task was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if w.heartbeatTimeout > 0 {
		reclaimed, err := w.store.ReclaimStaleTasks(ctx, w.heartbeatTimeout)
		if err != nil {
			return false, fmt.Errorf("reclaim stale tasks: %w", err)
		}
		if reclaimed > 0 {
			w.logger.Warn("reclaimed stale tasks", logging.Int64("count", reclaimed))
		}
	}

	task, err := w.store.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		w.recordCounts(ctx)
		return false, nil
	}

	w.process(ctx, task)
	w.recordCounts(ctx)
	return true, nil
}

func (w *Worker) process(ctx context.Context, task *store.Task) {
	taskCtx := services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(taskCtx, w.logger).With(
		logging.String("kind", task.Kind),
		logging.Int("attempt", task.Attempts),
	)

	started := time.Now()
	err := w.dispatch(taskCtx, task)
	elapsed := time.Since(started)

	if err == nil {
		if cerr := w.store.CompleteTask(ctx, task.ID); cerr != nil {
			logger.Error("record task success failed", logging.Error(cerr))
		}
		w.metrics.ObserveTask(task.Kind, metrics.OutcomeSucceeded, elapsed)
		logger.Info("task succeeded", logging.Duration("elapsed", elapsed))
		return
	}

	status, ferr := w.store.FailTask(ctx, task, err, services.Retryable(err), w.retryBackoff)
	if ferr != nil {
		logger.Error("record task failure failed", logging.Error(ferr), logging.String("cause", err.Error()))
		return
	}
	outcome := metrics.OutcomeFailed
	if status == store.TaskPending {
		outcome = metrics.OutcomeRetried
	}
	w.metrics.ObserveTask(task.Kind, outcome, elapsed)
	logger.Warn("task failed",
		logging.Error(err),
		logging.String("outcome", outcome),
		logging.String(logging.FieldEventType, "task_failed"),
	)
}

func (w *Worker) dispatch(ctx context.Context, task *store.Task) error {
	handler, ok := w.handlers[task.Kind]
	if !ok {
		return services.Wrap(services.ErrValidation, "tasks", "dispatch", "no handler for kind "+task.Kind, nil)
	}

	hbCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.heartbeat(hbCtx, &wg, task.ID)
	defer func() {
		stop()
		wg.Wait()
	}()

	return handler(ctx, task)
}

func (w *Worker) heartbeat(ctx context.Context, wg *sync.WaitGroup, id int64) {
	defer wg.Done()
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("task heartbeat failed", logging.Int64(logging.FieldTaskID, id), logging.Error(err))
			}
		}
	}
}

func (w *Worker) recordCounts(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	counts, err := w.store.TaskCounts(ctx)
	if err != nil {
		return
	}
	out := make(map[string]int, len(counts))
	for status, count := range counts {
		out[string(status)] = count
	}
	w.metrics.SetTaskCounts(out)
}
