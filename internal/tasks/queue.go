package tasks

import (
	"context"
	"fmt"

	"experimenter/internal/store"
)

// Task kinds.
const (
	KindSendReviewEmail      = "send_review_email"
	KindSendShipEmail        = "send_ship_email"
	KindCreateExperimentBug  = "create_experiment_bug"
	KindAddExperimentComment = "add_experiment_comment"
)

// EmailPayload describes a review or ship email.
type EmailPayload struct {
	UserID         int64  `json:"user_id"`
	ExperimentName string `json:"experiment_name"`
	ExperimentURL  string `json:"experiment_url"`
	NeedsAttention bool   `json:"needs_attention,omitempty"`
}

// ExperimentPayload identifies the experiment a Bugzilla task acts on and
// the user to notify.
type ExperimentPayload struct {
	UserID       int64 `json:"user_id"`
	ExperimentID int64 `json:"experiment_id"`
}

// Enqueuer persists new tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any, maxAttempts int) (*store.Task, error)
}

// Queue enqueues typed tasks with the configured attempt budget.
type Queue struct {
	store       Enqueuer
	maxAttempts int
}

// NewQueue returns a queue backed by st.
func NewQueue(st Enqueuer, maxAttempts int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{store: st, maxAttempts: maxAttempts}
}

// SendReviewEmail schedules the review request email.
func (q *Queue) SendReviewEmail(ctx context.Context, payload EmailPayload) error {
	return q.enqueue(ctx, KindSendReviewEmail, payload)
}

// SendShipEmail schedules the ready-to-ship email.
func (q *Queue) SendShipEmail(ctx context.Context, payload EmailPayload) error {
	return q.enqueue(ctx, KindSendShipEmail, payload)
}

// CreateExperimentBug schedules filing the tracking bug.
func (q *Queue) CreateExperimentBug(ctx context.Context, payload ExperimentPayload) error {
	return q.enqueue(ctx, KindCreateExperimentBug, payload)
}

// AddExperimentComment schedules posting the experiment details to its bug.
func (q *Queue) AddExperimentComment(ctx context.Context, payload ExperimentPayload) error {
	return q.enqueue(ctx, KindAddExperimentComment, payload)
}

func (q *Queue) enqueue(ctx context.Context, kind string, payload any) error {
	if _, err := q.store.Enqueue(ctx, kind, payload, q.maxAttempts); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}
