package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/logging"
	"experimenter/internal/notifications"
	"experimenter/internal/services"
	"experimenter/internal/services/email"
	"experimenter/internal/store"
)

// ExperimentStore loads and updates experiments for Bugzilla tasks.
type ExperimentStore interface {
	GetExperimentByID(ctx context.Context, id int64) (*experiments.Experiment, error)
	SetBugzillaID(ctx context.Context, id int64, bugzillaID string) error
}

// BugTracker files and comments on tracking bugs.
type BugTracker interface {
	CreateBug(ctx context.Context, e *experiments.Experiment) (string, error)
	AddComment(ctx context.Context, e *experiments.Experiment) (string, error)
	DetailURL(id string) string
}

// Handlers implements the task kinds produced by status changes.
type Handlers struct {
	store         ExperimentStore
	mailer        email.Mailer
	bugs          BugTracker
	notifier      notifications.Service
	logger        *slog.Logger
	sender        string
	reviewAddress string
	shipAddress   string
}

// NewHandlers wires the task handlers to their collaborators.
func NewHandlers(cfg *config.Config, st ExperimentStore, mailer email.Mailer, bugs BugTracker, notifier notifications.Service, logger *slog.Logger) *Handlers {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		store:         st,
		mailer:        mailer,
		bugs:          bugs,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "tasks"),
		sender:        cfg.Email.Sender,
		reviewAddress: cfg.Email.ReviewAddress,
		shipAddress:   cfg.Email.ShipAddress,
	}
}

// Register installs every handler on w.
func (h *Handlers) Register(w *Worker) {
	w.Handle(KindSendReviewEmail, h.SendReviewEmail)
	w.Handle(KindSendShipEmail, h.SendShipEmail)
	w.Handle(KindCreateExperimentBug, h.CreateExperimentBug)
	w.Handle(KindAddExperimentComment, h.AddExperimentComment)
}

// SendReviewEmail mails the review list and tells the requester.
func (h *Handlers) SendReviewEmail(ctx context.Context, task *store.Task) error {
	var p EmailPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	msg := email.ReviewMessage(h.sender, h.reviewAddress, p.ExperimentName, p.ExperimentURL, p.NeedsAttention)
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Info("review email sent", logging.String("to", h.reviewAddress))
	return h.notifier.NotifyReviewEmailSent(ctx, p.UserID, h.reviewAddress, p.ExperimentName)
}

// SendShipEmail mails the ship list and tells the requester.
func (h *Handlers) SendShipEmail(ctx context.Context, task *store.Task) error {
	var p EmailPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	msg := email.ShipMessage(h.sender, h.shipAddress, p.ExperimentName, p.ExperimentURL)
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Info("ship email sent", logging.String("to", h.shipAddress))
	return h.notifier.NotifyShipEmailSent(ctx, p.UserID, h.shipAddress, p.ExperimentName)
}

// CreateExperimentBug files the tracking bug and stores its id. The
// failure notification is recorded once the task will not be retried.
func (h *Handlers) CreateExperimentBug(ctx context.Context, task *store.Task) error {
	var p ExperimentPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	e, err := h.store.GetExperimentByID(ctx, p.ExperimentID)
	if err != nil {
		return err
	}
	ctx = services.WithExperiment(ctx, e.Slug)
	logger := logging.WithContext(ctx, h.logger)

	if e.BugzillaID != "" {
		logger.Info("bugzilla ticket already exists", logging.String("bugzilla_id", e.BugzillaID))
		return nil
	}

	id, err := h.bugs.CreateBug(ctx, e)
	if err != nil {
		if task.Final() || !services.Retryable(err) {
			if nerr := h.notifier.NotifyBugCreateFailed(ctx, p.UserID); nerr != nil {
				logger.Warn("record bug failure notification failed", logging.Error(nerr))
			}
		}
		return err
	}
	if err := h.store.SetBugzillaID(ctx, e.ID, id); err != nil {
		return fmt.Errorf("store bugzilla id %s: %w", id, err)
	}
	logger.Info("bugzilla ticket created", logging.String("bugzilla_id", id))
	return h.notifier.NotifyBugCreated(ctx, p.UserID, h.bugs.DetailURL(id))
}

// AddExperimentComment posts the experiment details to its bug.
func (h *Handlers) AddExperimentComment(ctx context.Context, task *store.Task) error {
	var p ExperimentPayload
	if err := task.Decode(&p); err != nil {
		return err
	}
	e, err := h.store.GetExperimentByID(ctx, p.ExperimentID)
	if err != nil {
		return err
	}
	ctx = services.WithExperiment(ctx, e.Slug)
	if _, err := h.bugs.AddComment(ctx, e); err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Info("bugzilla comment added", logging.String("bugzilla_id", e.BugzillaID))
	return h.notifier.NotifyBugCommentAdded(ctx, p.UserID, h.bugs.DetailURL(e.BugzillaID))
}
