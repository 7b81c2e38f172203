package experiments

import "time"

// Comment is a discussion entry attached to one section of an experiment.
type Comment struct {
	ID             int64
	ExperimentID   int64
	Section        string
	Text           string
	CreatedByID    int64
	CreatedByEmail string
	CreatedOn      time.Time
}

// User is identified by the email forwarded from the authenticating proxy.
type User struct {
	ID    int64
	Email string
}

// Project groups experiments owned by one product area.
type Project struct {
	ID   int64
	Name string
	Slug string
}

// Notification is a message shown once to a user on their next page view.
type Notification struct {
	ID        int64
	UserID    int64
	Message   string
	Read      bool
	CreatedOn time.Time
}
