package api

import (
	"context"
	"fmt"
	"log/slog"

	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/logging"
	"experimenter/internal/metrics"
	"experimenter/internal/services"
	"experimenter/internal/tasks"
)

// ExperimentStore abstracts the persistence operations ExperimentService needs.
type ExperimentStore interface {
	CreateExperiment(ctx context.Context, e *experiments.Experiment, createdBy experiments.User, message string) error
	SaveExperiment(ctx context.Context, e *experiments.Experiment, changedBy experiments.User, message string) error
	SaveExperimentVariants(ctx context.Context, e *experiments.Experiment, variants []experiments.Variant, changedBy experiments.User, message string) error
	TransitionExperiment(ctx context.Context, e *experiments.Experiment, to experiments.Status, changedBy experiments.User, message string) error
	GetExperimentBySlug(ctx context.Context, slug string) (*experiments.Experiment, error)
	ListExperiments(ctx context.Context, filter experiments.Filter, ordering experiments.Ordering) ([]*experiments.Experiment, error)
	AddComment(ctx context.Context, c *experiments.Comment) error
	CommentsBySection(ctx context.Context, experimentID int64) (map[string][]experiments.Comment, error)
}

// TaskQueue schedules the background work triggered by status changes.
type TaskQueue interface {
	SendReviewEmail(ctx context.Context, payload tasks.EmailPayload) error
	SendShipEmail(ctx context.Context, payload tasks.EmailPayload) error
	CreateExperimentBug(ctx context.Context, payload tasks.ExperimentPayload) error
	AddExperimentComment(ctx context.Context, payload tasks.ExperimentPayload) error
}

// ExperimentService orchestrates experiment edits and the status workflow.
type ExperimentService struct {
	store        ExperimentStore
	queue        TaskQueue
	metrics      *metrics.Registry
	logger       *slog.Logger
	hostname     string
	bugzillaHost string
	bugURL       func(id string) string
}

// NewExperimentService wires the service. reg and logger may be nil.
func NewExperimentService(cfg *config.Config, st ExperimentStore, queue TaskQueue, reg *metrics.Registry, logger *slog.Logger) *ExperimentService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExperimentService{
		store:        st,
		queue:        queue,
		metrics:      reg,
		logger:       logging.NewComponentLogger(logger, "api"),
		hostname:     cfg.Server.Hostname,
		bugzillaHost: cfg.Bugzilla.Host,
		bugURL:       cfg.BugzillaDetailURL,
	}
}

// Hostname is the public host used in experiment URLs.
func (s *ExperimentService) Hostname() string { return s.hostname }

// BugURL resolves the bug page for e, or "" when no bug is filed.
func (s *ExperimentService) BugURL(e *experiments.Experiment) string {
	return e.BugzillaURL(s.bugURL)
}

// Serialize converts e to its REST representation.
func (s *ExperimentService) Serialize(e *experiments.Experiment) Experiment {
	return FromExperiment(e, s.hostname, s.bugURL)
}

// SerializeAll converts a list to its REST representation.
func (s *ExperimentService) SerializeAll(list []*experiments.Experiment) []Experiment {
	return FromExperiments(list, s.hostname, s.bugURL)
}

// Create validates the overview form and stores a new draft owned by actor.
func (s *ExperimentService) Create(ctx context.Context, actor experiments.User, form experiments.OverviewForm) (*experiments.Experiment, error) {
	if err := form.ValidateNew(s.bugzillaHost); err != nil {
		return nil, err
	}
	e := experiments.New(form.Type)
	form.Apply(e)
	e.OwnerID = actor.ID
	e.OwnerEmail = actor.Email
	if err := s.store.CreateExperiment(ctx, e, actor, ""); err != nil {
		return nil, err
	}
	s.logger.Info("experiment created",
		logging.String(logging.FieldExperiment, e.Slug),
		logging.String(logging.FieldUser, actor.Email),
		logging.String(logging.FieldEventType, "experiment_created"),
	)
	return e, nil
}

// UpdateOverview applies the overview section. The slug never changes.
func (s *ExperimentService) UpdateOverview(ctx context.Context, actor experiments.User, slug string, form experiments.OverviewForm) (*experiments.Experiment, error) {
	e, err := s.editable(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := form.Validate(s.bugzillaHost); err != nil {
		return e, err
	}
	form.Apply(e)
	if err := s.store.SaveExperiment(ctx, e, actor, ""); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateVariants applies the population, type-specific fields, and branches.
func (s *ExperimentService) UpdateVariants(ctx context.Context, actor experiments.User, slug string, form experiments.VariantsForm) (*experiments.Experiment, error) {
	e, err := s.editable(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := form.Validate(e.Type); err != nil {
		return e, err
	}
	variants := form.Apply(e)
	if err := s.store.SaveExperimentVariants(ctx, e, variants, actor, ""); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateObjectives applies the objectives and analysis sections.
func (s *ExperimentService) UpdateObjectives(ctx context.Context, actor experiments.User, slug string, form experiments.ObjectivesForm) (*experiments.Experiment, error) {
	e, err := s.editable(ctx, slug)
	if err != nil {
		return nil, err
	}
	form.Apply(e)
	if err := s.store.SaveExperiment(ctx, e, actor, ""); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateRisks applies the risks and testing sections.
func (s *ExperimentService) UpdateRisks(ctx context.Context, actor experiments.User, slug string, form experiments.RisksForm) (*experiments.Experiment, error) {
	e, err := s.editable(ctx, slug)
	if err != nil {
		return nil, err
	}
	form.Apply(e)
	if err := s.store.SaveExperiment(ctx, e, actor, ""); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateReviews records the sign-off checkboxes. Sign-offs are collected
// after the experiment leaves Draft, so they are not gated on IsEditable.
func (s *ExperimentService) UpdateReviews(ctx context.Context, actor experiments.User, slug string, reviews experiments.Reviews) (*experiments.Experiment, error) {
	e, err := s.store.GetExperimentBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if e.Status == experiments.StatusComplete || e.Status == experiments.StatusRejected {
		return e, services.Wrap(services.ErrValidation, "api", "update reviews",
			fmt.Sprintf("%s is %s", e.Slug, e.Status), nil)
	}
	e.Reviews = reviews
	if err := s.store.SaveExperiment(ctx, e, actor, ""); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateStatus moves the experiment to status to and schedules the
// follow-up tasks for that transition. Scheduling failures are logged; the
// transition itself has already been committed.
func (s *ExperimentService) UpdateStatus(ctx context.Context, actor experiments.User, slug string, to experiments.Status, message string) (*experiments.Experiment, error) {
	e, err := s.store.GetExperimentBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	from := e.Status
	if err := s.store.TransitionExperiment(ctx, e, to, actor, message); err != nil {
		return e, err
	}
	s.metrics.ObserveTransition(string(from), string(to))
	s.logger.Info("experiment status changed",
		logging.String(logging.FieldExperiment, e.Slug),
		logging.String(logging.FieldUser, actor.Email),
		logging.String(logging.FieldEventType, "status_changed"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
	if err := s.scheduleFollowUps(ctx, actor, e, from, to); err != nil {
		s.logger.Error("schedule status follow-up failed",
			logging.String(logging.FieldExperiment, e.Slug),
			logging.Error(err),
		)
	}
	return e, nil
}

func (s *ExperimentService) scheduleFollowUps(ctx context.Context, actor experiments.User, e *experiments.Experiment, from, to experiments.Status) error {
	if s.queue == nil {
		return nil
	}
	email := tasks.EmailPayload{
		UserID:         actor.ID,
		ExperimentName: e.Name,
		ExperimentURL:  e.ExperimentURL(s.hostname),
	}
	bug := tasks.ExperimentPayload{UserID: actor.ID, ExperimentID: e.ID}

	switch {
	case from == experiments.StatusDraft && to == experiments.StatusReview:
		email.NeedsAttention = e.IsHighRisk()
		if err := s.queue.SendReviewEmail(ctx, email); err != nil {
			return err
		}
		if e.BugzillaID == "" {
			return s.queue.CreateExperimentBug(ctx, bug)
		}
	case from == experiments.StatusReview && to == experiments.StatusShip:
		if err := s.queue.SendShipEmail(ctx, email); err != nil {
			return err
		}
		if e.BugzillaID != "" {
			return s.queue.AddExperimentComment(ctx, bug)
		}
	}
	return nil
}

// Accept moves a shipped experiment to Accepted.
func (s *ExperimentService) Accept(ctx context.Context, actor experiments.User, slug string) (*experiments.Experiment, error) {
	return s.UpdateStatus(ctx, actor, slug, experiments.StatusAccepted, "")
}

// Reject moves the experiment to Rejected, recording message on the changelog.
func (s *ExperimentService) Reject(ctx context.Context, actor experiments.User, slug, message string) (*experiments.Experiment, error) {
	return s.UpdateStatus(ctx, actor, slug, experiments.StatusRejected, message)
}

// ToggleArchive flips the archived flag.
func (s *ExperimentService) ToggleArchive(ctx context.Context, actor experiments.User, slug string) (*experiments.Experiment, error) {
	e, err := s.store.GetExperimentBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	e.Archived = !e.Archived
	message := "Unarchived Experiment"
	if e.Archived {
		message = "Archived Experiment"
	}
	if err := s.store.SaveExperiment(ctx, e, actor, message); err != nil {
		return e, err
	}
	return e, nil
}

// AddComment validates form and attaches the comment to the experiment.
func (s *ExperimentService) AddComment(ctx context.Context, actor experiments.User, slug string, form experiments.CommentForm) (*experiments.Comment, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	e, err := s.store.GetExperimentBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	comment := &experiments.Comment{
		ExperimentID:   e.ID,
		Section:        form.Section,
		Text:           form.Text,
		CreatedByID:    actor.ID,
		CreatedByEmail: actor.Email,
	}
	if err := s.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Comments returns the experiment's comments grouped by section.
func (s *ExperimentService) Comments(ctx context.Context, e *experiments.Experiment) (map[string][]experiments.Comment, error) {
	return s.store.CommentsBySection(ctx, e.ID)
}

// List returns experiments matching filter in the given order.
func (s *ExperimentService) List(ctx context.Context, filter experiments.Filter, ordering experiments.Ordering) ([]*experiments.Experiment, error) {
	if ordering == "" {
		ordering = experiments.DefaultOrdering
	}
	return s.store.ListExperiments(ctx, filter, ordering)
}

// Get loads one experiment by slug.
func (s *ExperimentService) Get(ctx context.Context, slug string) (*experiments.Experiment, error) {
	return s.store.GetExperimentBySlug(ctx, slug)
}

func (s *ExperimentService) editable(ctx context.Context, slug string) (*experiments.Experiment, error) {
	e, err := s.store.GetExperimentBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !e.IsEditable() {
		return e, services.Wrap(services.ErrValidation, "api", "edit experiment",
			fmt.Sprintf("%s can no longer be edited in status %s", e.Slug, e.Status), nil)
	}
	return e, nil
}
