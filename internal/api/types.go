package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Experiment describes an experiment in a transport-friendly format.
type Experiment struct {
	ExperimentURL      string    `json:"experiment_url"`
	Type               string    `json:"type"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	Status             string    `json:"status"`
	Archived           bool      `json:"archived"`
	Project            string    `json:"project,omitempty"`
	Owner              string    `json:"owner,omitempty"`
	ShortDescription   string    `json:"short_description"`
	AddonExperimentID  string    `json:"addon_experiment_id"`
	AddonTestingURL    string    `json:"addon_testing_url"`
	AddonReleaseURL    string    `json:"addon_release_url"`
	PrefKey            string    `json:"pref_key"`
	PrefType           string    `json:"pref_type"`
	PrefBranch         string    `json:"pref_branch"`
	PopulationPercent  string    `json:"population_percent"`
	FirefoxVersion     string    `json:"firefox_version"`
	FirefoxChannel     string    `json:"firefox_channel"`
	ClientMatching     string    `json:"client_matching"`
	ProposedStartDate  *int64    `json:"proposed_start_date"`
	ProposedEnrollment int       `json:"proposed_enrollment"`
	ProposedDuration   int       `json:"proposed_duration"`
	StartDate          *int64    `json:"start_date"`
	EndDate            *int64    `json:"end_date"`
	BugzillaURL        string    `json:"bugzilla_url,omitempty"`
	Variants           []Variant `json:"variants"`
	Changes            []Change  `json:"changes"`
}

// Variant describes one experiment branch.
type Variant struct {
	Description string `json:"description"`
	IsControl   bool   `json:"is_control"`
	Name        string `json:"name"`
	Ratio       int    `json:"ratio"`
	Slug        string `json:"slug"`
	Value       string `json:"value"`
}

// Change describes one changelog entry.
type Change struct {
	ChangedOn    string `json:"changed_on"`
	ChangedBy    string `json:"changed_by,omitempty"`
	PrettyStatus string `json:"pretty_status"`
	NewStatus    string `json:"new_status"`
	OldStatus    string `json:"old_status"`
	Message      string `json:"message,omitempty"`
}

// Notification is a user-facing message popped for the current user.
type Notification struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	CreatedOn string `json:"created_on"`
}

// RejectRequest is the body accepted by the reject endpoint.
type RejectRequest struct {
	Message string `json:"message"`
}
