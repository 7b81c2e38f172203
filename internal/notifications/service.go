package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"

	"experimenter/internal/experiments"
)

// Message templates shown to experiment owners.
const (
	MessageEmailSent       = "An email was sent to %s about %s"
	MessageBugCreated      = `A <a target="_blank" href="%s">Bugzilla Ticket</a> was created for your experiment`
	MessageBugCreateFailed = "Experimenter failed to create a Bugzilla Ticket for your experiment.  Please contact an Experimenter Administrator on #ask-experimenter on Slack."
	MessageBugUpdated      = `The <a target="_blank" href="%s">Bugzilla Ticket</a> was updated with the details of this experiment`
)

// Service defines the notification surface exposed to tasks and handlers.
type Service interface {
	NotifyReviewEmailSent(ctx context.Context, userID int64, address, experimentName string) error
	NotifyShipEmailSent(ctx context.Context, userID int64, address, experimentName string) error
	NotifyBugCreated(ctx context.Context, userID int64, bugURL string) error
	NotifyBugCreateFailed(ctx context.Context, userID int64) error
	NotifyBugCommentAdded(ctx context.Context, userID int64, bugURL string) error
	Pending(ctx context.Context, userID int64) ([]experiments.Notification, error)
}

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, userID int64, message string) (experiments.Notification, error)
	PopUnreadNotifications(ctx context.Context, userID int64) ([]experiments.Notification, error)
}

// NewService builds a notification service backed by st.
func NewService(st Store) Service {
	if st == nil {
		return noopService{}
	}
	return &storeService{store: st}
}

// NewNoop returns a service that records nothing.
func NewNoop() Service {
	return noopService{}
}

type storeService struct {
	store Store
}

func (s *storeService) NotifyReviewEmailSent(ctx context.Context, userID int64, address, experimentName string) error {
	return s.create(ctx, userID, emailSentMessage(address, experimentName))
}

func (s *storeService) NotifyShipEmailSent(ctx context.Context, userID int64, address, experimentName string) error {
	return s.create(ctx, userID, emailSentMessage(address, experimentName))
}

func (s *storeService) NotifyBugCreated(ctx context.Context, userID int64, bugURL string) error {
	return s.create(ctx, userID, fmt.Sprintf(MessageBugCreated, html.EscapeString(bugURL)))
}

func (s *storeService) NotifyBugCreateFailed(ctx context.Context, userID int64) error {
	return s.create(ctx, userID, MessageBugCreateFailed)
}

func (s *storeService) NotifyBugCommentAdded(ctx context.Context, userID int64, bugURL string) error {
	return s.create(ctx, userID, fmt.Sprintf(MessageBugUpdated, html.EscapeString(bugURL)))
}

// emailSentMessage escapes both values; messages render as HTML.
func emailSentMessage(address, experimentName string) string {
	return fmt.Sprintf(MessageEmailSent,
		html.EscapeString(strings.TrimSpace(address)),
		html.EscapeString(strings.TrimSpace(experimentName)),
	)
}

func (s *storeService) Pending(ctx context.Context, userID int64) ([]experiments.Notification, error) {
	return s.store.PopUnreadNotifications(ctx, userID)
}

func (s *storeService) create(ctx context.Context, userID int64, message string) error {
	if userID == 0 {
		return nil
	}
	if _, err := s.store.CreateNotification(ctx, userID, message); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyReviewEmailSent(context.Context, int64, string, string) error { return nil }
func (noopService) NotifyShipEmailSent(context.Context, int64, string, string) error   { return nil }
func (noopService) NotifyBugCreated(context.Context, int64, string) error              { return nil }
func (noopService) NotifyBugCreateFailed(context.Context, int64) error                 { return nil }
func (noopService) NotifyBugCommentAdded(context.Context, int64, string) error         { return nil }
func (noopService) Pending(context.Context, int64) ([]experiments.Notification, error) {
	return nil, nil
}
