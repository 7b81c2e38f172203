package experiments

import (
	"fmt"
	"strings"

	"experimenter/internal/services"
)

// Status represents the lifecycle of an experiment.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusReview   Status = "Review"
	StatusShip     Status = "Ship"
	StatusAccepted Status = "Accepted"
	StatusLive     Status = "Live"
	StatusComplete Status = "Complete"
	StatusRejected Status = "Rejected"
)

var allStatuses = []Status{
	StatusDraft,
	StatusReview,
	StatusShip,
	StatusAccepted,
	StatusLive,
	StatusComplete,
	StatusRejected,
}

var statusTransitions = map[Status][]Status{
	StatusDraft:    {StatusReview},
	StatusReview:   {StatusDraft, StatusShip, StatusRejected},
	StatusShip:     {StatusReview, StatusAccepted, StatusRejected},
	StatusAccepted: {StatusLive, StatusRejected},
	StatusLive:     {StatusComplete},
	StatusComplete: {},
	StatusRejected: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known Status, ignoring case.
func ParseStatus(value string) (Status, bool) {
	trimmed := strings.TrimSpace(value)
	for _, status := range allStatuses {
		if strings.EqualFold(string(status), trimmed) {
			return status, true
		}
	}
	return "", false
}

// NextStatuses lists the statuses reachable from s.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), statusTransitions[s]...)
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves e to status to, enforcing the state machine and the
// completeness gates. e is only modified on success.
func Transition(e *Experiment, to Status) error {
	from := e.Status
	if !CanTransition(from, to) {
		return services.Wrap(services.ErrInvalidTransition, "experiments", "transition",
			fmt.Sprintf("%s cannot move from %s to %s", e.Slug, from, to), nil)
	}
	switch {
	case from == StatusDraft && to == StatusReview && !e.IsReadyForReview():
		return services.Wrap(services.ErrNotReady, "experiments", "transition",
			fmt.Sprintf("%s has incomplete sections: %s", e.Slug, strings.Join(e.IncompleteSections(), ", ")), nil)
	case from == StatusReview && to == StatusShip && !e.CompletedRequiredReviews():
		return services.Wrap(services.ErrNotReady, "experiments", "transition",
			fmt.Sprintf("%s is missing required sign-offs", e.Slug), nil)
	}
	e.Status = to
	return nil
}
