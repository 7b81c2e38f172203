package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"experimenter/internal/services"
)

// TaskStatus represents the lifecycle of a background task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// ParseTaskStatus converts a string into a known TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	switch status := TaskStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case TaskPending, TaskRunning, TaskSucceeded, TaskFailed:
		return status, true
	default:
		return "", false
	}
}

// Task is a unit of deferred work persisted for the worker.
type Task struct {
	ID          int64
	Kind        string
	Payload     json.RawMessage
	Status      TaskStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	RunAfter    time.Time
	Heartbeat   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Final reports whether a failure on the current attempt exhausts the task.
func (t Task) Final() bool {
	return t.Attempts >= t.MaxAttempts
}

// Decode unmarshals the payload into dst.
func (t Task) Decode(dst any) error {
	if err := json.Unmarshal(t.Payload, dst); err != nil {
		return services.Wrap(services.ErrValidation, "tasks", "decode payload", t.Kind, err)
	}
	return nil
}

const taskColumns = "id, kind, payload, status, attempts, max_attempts, last_error, run_after, heartbeat, created_at, updated_at"

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		t                            Task
		payload, status              string
		runAfter, createdAt, updated string
		heartbeat                    sql.NullString
	)
	if err := scanner.Scan(&t.ID, &t.Kind, &payload, &status, &t.Attempts, &t.MaxAttempts, &t.LastError, &runAfter, &heartbeat, &createdAt, &updated); err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	t.Status = TaskStatus(status)
	t.RunAfter = parseTime(runAfter)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updated)
	if heartbeat.Valid {
		if hb, err := parseTimeString(heartbeat.String); err == nil {
			t.Heartbeat = &hb
		}
	}
	return &t, nil
}

// Enqueue stores a pending task of kind with payload encoded as JSON.
func (s *Store) Enqueue(ctx context.Context, kind string, payload any, maxAttempts int) (*Task, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "enqueue", "task kind is required", nil)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "enqueue", "encode payload", err)
	}
	now := formatTime(s.now())
	res, err := s.execWithRetry(ctx,
		"INSERT INTO tasks (kind, payload, status, attempts, max_attempts, last_error, run_after, created_at, updated_at) VALUES (?, ?, ?, 0, ?, '', ?, ?, ?)",
		kind, string(data), string(TaskPending), maxAttempts, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ensureContext(ctx), "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ClaimNext atomically moves the oldest runnable pending task to running
// and counts the attempt. It returns nil when nothing is runnable.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	var claimed *Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		var id int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM tasks WHERE status = ? AND run_after <= ? ORDER BY run_after, id LIMIT 1",
			string(TaskPending), now).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status = ?, attempts = attempts + 1, heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?",
			string(TaskRunning), now, now, id, string(TaskPending))
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			claimed = nil
			return nil
		}
		claimed, err = scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return claimed, nil
}

// Heartbeat refreshes the heartbeat of a running task.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	now := formatTime(s.now())
	_, err := s.execWithRetry(ctx,
		"UPDATE tasks SET heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?",
		now, now, id, string(TaskRunning))
	if err != nil {
		return fmt.Errorf("task heartbeat: %w", err)
	}
	return nil
}

// CompleteTask marks a task succeeded.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	now := formatTime(s.now())
	_, err := s.execWithRetry(ctx,
		"UPDATE tasks SET status = ?, last_error = '', heartbeat = NULL, updated_at = ? WHERE id = ?",
		string(TaskSucceeded), now, id)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// FailTask records cause against t. When retry is true and attempts remain
// the task goes back to pending after backoff times the attempt count;
// otherwise it is marked failed. It returns the resulting status.
func (s *Store) FailTask(ctx context.Context, t *Task, cause error, retry bool, backoff time.Duration) (TaskStatus, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	now := s.now()
	status := TaskFailed
	runAfter := t.RunAfter
	if retry && !t.Final() {
		status = TaskPending
		runAfter = now.Add(backoff * time.Duration(max(t.Attempts, 1)))
	}
	_, err := s.execWithRetry(ctx,
		"UPDATE tasks SET status = ?, last_error = ?, run_after = ?, heartbeat = NULL, updated_at = ? WHERE id = ?",
		string(status), message, formatTime(runAfter), formatTime(now), t.ID)
	if err != nil {
		return "", fmt.Errorf("fail task: %w", err)
	}
	t.Status = status
	t.LastError = message
	t.RunAfter = runAfter
	t.Heartbeat = nil
	return status, nil
}

// ReclaimStaleTasks returns running tasks whose heartbeat is older than
// timeout to pending, for recovery after a crash.
func (s *Store) ReclaimStaleTasks(ctx context.Context, timeout time.Duration) (int64, error) {
	now := s.now()
	cutoff := formatTime(now.Add(-timeout))
	res, err := s.execWithRetry(ctx,
		"UPDATE tasks SET status = ?, heartbeat = NULL, updated_at = ? WHERE status = ? AND (heartbeat IS NULL OR heartbeat < ?)",
		string(TaskPending), formatTime(now), string(TaskRunning), cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedTasks resets failed tasks to pending with a fresh attempt
// budget. With no ids every failed task is retried.
func (s *Store) RetryFailedTasks(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTime(s.now())
	query := "UPDATE tasks SET status = ?, attempts = 0, last_error = '', run_after = ?, updated_at = ? WHERE status = ?"
	args := []any{string(TaskPending), now, now, string(TaskFailed)}
	if len(ids) > 0 {
		query += " AND id IN (" + makePlaceholders(len(ids)) + ")"
		args = append(args, int64Args(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed tasks: %w", err)
	}
	return res.RowsAffected()
}

// ListTasks returns tasks newest first, optionally narrowed to statuses.
func (s *Store) ListTasks(ctx context.Context, statuses ...TaskStatus) ([]*Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY id DESC"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskCounts returns the number of tasks per status.
func (s *Store) TaskCounts(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(1) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[TaskStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts[TaskStatus(status)] = count
	}
	return counts, rows.Err()
}
