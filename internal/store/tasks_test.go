package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"experimenter/internal/store"
	"experimenter/internal/testsupport"
)

type emailPayload struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func TestTaskLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	queued, err := st.Enqueue(ctx, "send_review_email", emailPayload{UserID: 7, Name: "Pref Flip"}, 2)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if queued.Status != store.TaskPending || queued.Attempts != 0 || queued.MaxAttempts != 2 {
		t.Fatalf("unexpected queued task %#v", queued)
	}

	claimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID || claimed.Status != store.TaskRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed task %#v", claimed)
	}
	if claimed.Heartbeat == nil {
		t.Fatal("expected heartbeat on claim")
	}
	var payload emailPayload
	if err := claimed.Decode(&payload); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.UserID != 7 || payload.Name != "Pref Flip" {
		t.Fatalf("unexpected payload %#v", payload)
	}

	again, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if again != nil {
		t.Fatalf("expected running task to stay claimed, got %#v", again)
	}

	status, err := st.FailTask(ctx, claimed, errors.New("smtp down"), true, 0)
	if err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}
	if status != store.TaskPending {
		t.Fatalf("expected first failure to requeue, got %s", status)
	}

	retried, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if retried == nil || retried.Attempts != 2 || retried.LastError != "smtp down" {
		t.Fatalf("unexpected retried task %#v", retried)
	}
	if !retried.Final() {
		t.Fatal("expected second attempt to be final")
	}
	status, err = st.FailTask(ctx, retried, errors.New("smtp still down"), true, 0)
	if err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}
	if status != store.TaskFailed {
		t.Fatalf("expected exhausted task to fail, got %s", status)
	}

	failed, err := st.ListTasks(ctx, store.TaskFailed)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError != "smtp still down" {
		t.Fatalf("unexpected failed tasks %#v", failed)
	}

	count, err := st.RetryFailedTasks(ctx)
	if err != nil {
		t.Fatalf("RetryFailedTasks failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one retried task, got %d", count)
	}
	final, err := st.ClaimNext(ctx)
	if err != nil || final == nil {
		t.Fatalf("expected retried task to be claimable, got %#v, %v", final, err)
	}
	if final.Attempts != 1 {
		t.Fatalf("expected attempts reset, got %d", final.Attempts)
	}
	if err := st.CompleteTask(ctx, final.ID); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	counts, err := st.TaskCounts(ctx)
	if err != nil {
		t.Fatalf("TaskCounts failed: %v", err)
	}
	if counts[store.TaskSucceeded] != 1 || counts[store.TaskPending] != 0 {
		t.Fatalf("unexpected counts %#v", counts)
	}
}

func TestFailTaskWithoutRetryFailsImmediately(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "create_experiment_bug", map[string]int64{"experiment_id": 1}, 5); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	task, err := st.ClaimNext(ctx)
	if err != nil || task == nil {
		t.Fatalf("ClaimNext returned %#v, %v", task, err)
	}
	status, err := st.FailTask(ctx, task, errors.New("bad payload"), false, time.Minute)
	if err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}
	if status != store.TaskFailed {
		t.Fatalf("expected permanent failure, got %s", status)
	}
}

func TestFailTaskBackoffDelaysClaim(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "send_ship_email", emailPayload{Name: "Later"}, 3); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	task, err := st.ClaimNext(ctx)
	if err != nil || task == nil {
		t.Fatalf("ClaimNext returned %#v, %v", task, err)
	}
	if _, err := st.FailTask(ctx, task, errors.New("timeout"), true, time.Hour); err != nil {
		t.Fatalf("FailTask failed: %v", err)
	}
	next, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected backoff to delay the retry, got %#v", next)
	}
}

func TestReclaimStaleTasks(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "add_experiment_comment", map[string]int64{"experiment_id": 1}, 3); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	fresh, err := st.ReclaimStaleTasks(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReclaimStaleTasks failed: %v", err)
	}
	if fresh != 0 {
		t.Fatalf("expected recent heartbeat to be kept, reclaimed %d", fresh)
	}

	time.Sleep(5 * time.Millisecond)
	stale, err := st.ReclaimStaleTasks(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("ReclaimStaleTasks failed: %v", err)
	}
	if stale != 1 {
		t.Fatalf("expected one stale task, reclaimed %d", stale)
	}
	pending, err := st.ListTasks(ctx, store.TaskPending)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected reclaimed task pending, got %d", len(pending))
	}
}

func TestEnqueueRequiresKind(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := st.Enqueue(context.Background(), " ", nil, 1); err == nil {
		t.Fatal("expected error for blank kind")
	}
}
