package experiments

import "time"

// ChangeLog is an append-only audit record. OldStatus is empty for the
// creation entry; edits carry OldStatus == NewStatus.
type ChangeLog struct {
	ID             int64
	ExperimentID   int64
	ChangedOn      time.Time
	ChangedByID    int64
	ChangedByEmail string
	OldStatus      Status
	NewStatus      Status
	Message        string
}

var prettyStatusLabels = map[Status]map[Status]string{
	"": {
		StatusDraft: "Created Experiment",
	},
	StatusDraft: {
		StatusDraft:  "Edited Experiment",
		StatusReview: "Ready for Sign-Off",
	},
	StatusReview: {
		StatusReview:   "Edited Experiment",
		StatusDraft:    "Return to Draft",
		StatusShip:     "Marked as Ready to Ship",
		StatusRejected: "Rejected Experiment",
	},
	StatusShip: {
		StatusShip:     "Edited Experiment",
		StatusReview:   "Return to Sign-Off",
		StatusAccepted: "Accepted by Shield",
		StatusRejected: "Rejected Experiment",
	},
	StatusAccepted: {
		StatusAccepted: "Edited Experiment",
		StatusLive:     "Launched Experiment",
		StatusRejected: "Rejected Experiment",
	},
	StatusLive: {
		StatusLive:     "Edited Experiment",
		StatusComplete: "Completed Experiment",
	},
	StatusComplete: {
		StatusComplete: "Edited Experiment",
	},
	StatusRejected: {
		StatusRejected: "Edited Experiment",
	},
}

// PrettyStatus renders the change for timelines.
func (c ChangeLog) PrettyStatus() string {
	if label, ok := prettyStatusLabels[c.OldStatus][c.NewStatus]; ok {
		return label
	}
	if c.NewStatus == StatusRejected {
		return "Rejected Experiment"
	}
	return "Updated Experiment"
}

// IsStatusChange reports whether the entry moved the experiment between statuses.
func (c ChangeLog) IsStatusChange() bool {
	return c.OldStatus != c.NewStatus
}
