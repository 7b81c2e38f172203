package experiments

import (
	"fmt"
	"strconv"
	"time"
)

const testTubeBaseURL = "https://firefox-test-tube.herokuapp.com"

// Default section bodies. A section still carrying its default counts as incomplete.
const (
	ObjectivesDefault = `What is the objective of this experiment? What are the hypotheses?

What questions do you expect to answer with this study?

What effects do you expect on user behaviour and Firefox metrics?`

	AnalysisDefault = `Which metrics will be used to evaluate the outcome?

What is the minimum effect size that would change a product decision?

Who is responsible for the final report and when will it be delivered?`

	TestingDefault = `If additional QA is required, provide a plan for testing each branch of this study:`
)

// Reviews holds the sign-offs collected while an experiment is in review.
type Reviews struct {
	Science       bool `json:"review_science"`
	Engineering   bool `json:"review_engineering"`
	QARequested   bool `json:"review_qa_requested"`
	IntentToShip  bool `json:"review_intent_to_ship"`
	Bugzilla      bool `json:"review_bugzilla"`
	QA            bool `json:"review_qa"`
	Relman        bool `json:"review_relman"`
	Advisory      bool `json:"review_advisory"`
	Legal         bool `json:"review_legal"`
	UX            bool `json:"review_ux"`
	Security      bool `json:"review_security"`
	VP            bool `json:"review_vp"`
	DataSteward   bool `json:"review_data_steward"`
	Comms         bool `json:"review_comms"`
	ImpactedTeams bool `json:"review_impacted_teams"`
}

// Experiment is the central record for a proposed product test.
type Experiment struct {
	ID          int64
	OwnerID     int64
	OwnerEmail  string
	ProjectID   int64
	ProjectSlug string
	ProjectName string
	Type        Type
	Status      Status
	Archived    bool

	Name                   string
	Slug                   string
	ShortDescription       string
	RelatedWork            string
	DataScienceBugzillaURL string
	FeatureBugzillaURL     string
	ProposedStartDate      time.Time
	ProposedEnrollment     int
	ProposedDuration       int

	AddonExperimentID string
	AddonTestingURL   string
	AddonReleaseURL   string

	PrefKey    string
	PrefType   string
	PrefBranch string

	PopulationPercent float64
	FirefoxVersion    string
	FirefoxChannel    string
	ClientMatching    string

	Objectives    string
	AnalysisOwner string
	Analysis      string

	RiskPartnerRelated       *bool
	RiskBrand                *bool
	RiskFastShipped          *bool
	RiskConfidential         *bool
	RiskReleasePopulation    *bool
	RiskTechnical            bool
	RiskTechnicalDescription string
	Risks                    string
	Testing                  string
	TestBuilds               string
	QAStatus                 string

	Reviews    Reviews
	BugzillaID string

	CreatedAt time.Time
	UpdatedAt time.Time

	Variants []Variant
	Changes  []ChangeLog
}

// New returns an unsaved draft carrying the default section bodies.
func New(t Type) *Experiment {
	return &Experiment{
		Type:       t,
		Status:     StatusDraft,
		Objectives: ObjectivesDefault,
		Analysis:   AnalysisDefault,
		Testing:    TestingDefault,
	}
}

func (e *Experiment) String() string { return e.Name }

func (e *Experiment) IsPref() bool  { return e.Type == TypePref }
func (e *Experiment) IsAddon() bool { return e.Type == TypeAddon }

// IsEditable reports whether section forms may still change the experiment.
func (e *Experiment) IsEditable() bool {
	return e.Status == StatusDraft || e.Status == StatusReview
}

// IsBegun reports whether the experiment has launched.
func (e *Experiment) IsBegun() bool {
	return e.Status == StatusLive || e.Status == StatusComplete
}

func (e *Experiment) CompletedOverview() bool { return e.ID != 0 }

func (e *Experiment) CompletedVariants() bool { return len(e.Variants) > 0 }

func (e *Experiment) CompletedObjectives() bool {
	return e.Objectives != ObjectivesDefault && e.Analysis != AnalysisDefault
}

// RiskQuestions returns the five tri-state risk answers in display order.
func (e *Experiment) RiskQuestions() []*bool {
	return []*bool{
		e.RiskPartnerRelated,
		e.RiskBrand,
		e.RiskFastShipped,
		e.RiskConfidential,
		e.RiskReleasePopulation,
	}
}

func (e *Experiment) CompletedRisks() bool {
	for _, answer := range e.RiskQuestions() {
		if answer == nil {
			return false
		}
	}
	return e.Testing != TestingDefault
}

func (e *Experiment) IsReadyForReview() bool {
	return e.CompletedOverview() && e.CompletedVariants() && e.CompletedObjectives() && e.CompletedRisks()
}

// IncompleteSections names the sections that still block review.
func (e *Experiment) IncompleteSections() []string {
	var missing []string
	if !e.CompletedOverview() {
		missing = append(missing, SectionOverview)
	}
	if !e.CompletedVariants() {
		missing = append(missing, SectionBranches)
	}
	if !e.CompletedObjectives() {
		missing = append(missing, SectionObjectives)
	}
	if !e.CompletedRisks() {
		missing = append(missing, SectionRisks)
	}
	return missing
}

func (e *Experiment) IsHighRisk() bool {
	for _, answer := range e.RiskQuestions() {
		if answer != nil && *answer {
			return true
		}
	}
	return false
}

func (e *Experiment) CompletedRequiredReviews() bool {
	return e.Reviews.Science && e.Reviews.Relman && e.Reviews.QA
}

// Control returns the control branch, or nil when none is saved.
func (e *Experiment) Control() *Variant {
	for i := range e.Variants {
		if e.Variants[i].IsControl {
			return &e.Variants[i]
		}
	}
	return nil
}

// Population renders the targeted audience, e.g. "0.5% of Nightly Firefox 57.0".
func (e *Experiment) Population() string {
	return fmt.Sprintf("%s%% of %s Firefox %s",
		strconv.FormatFloat(e.PopulationPercent, 'f', -1, 64), e.FirefoxChannel, e.FirefoxVersion)
}

// ProposedEndDate is the proposed start plus the proposed duration.
func (e *Experiment) ProposedEndDate() time.Time {
	if e.ProposedStartDate.IsZero() {
		return time.Time{}
	}
	return e.ProposedStartDate.AddDate(0, 0, e.ProposedDuration)
}

// EnrollmentEndDate is the proposed start plus the enrollment period.
func (e *Experiment) EnrollmentEndDate() time.Time {
	if e.ProposedStartDate.IsZero() {
		return time.Time{}
	}
	return e.ProposedStartDate.AddDate(0, 0, e.ProposedEnrollment)
}

// StartDate is the day the experiment went live, or the proposed start.
func (e *Experiment) StartDate() time.Time {
	if change, ok := e.findChange(StatusAccepted, StatusLive); ok {
		return truncateDay(change.ChangedOn)
	}
	return e.ProposedStartDate
}

// EndDate is the day the experiment completed, or the proposed end.
func (e *Experiment) EndDate() time.Time {
	if change, ok := e.findChange(StatusLive, StatusComplete); ok {
		return truncateDay(change.ChangedOn)
	}
	return e.ProposedEndDate()
}

// LatestChange returns the most recent changelog entry.
func (e *Experiment) LatestChange() (ChangeLog, bool) {
	var latest ChangeLog
	found := false
	for _, change := range e.Changes {
		if !found || change.ChangedOn.After(latest.ChangedOn) {
			latest = change
			found = true
		}
	}
	return latest, found
}

func (e *Experiment) findChange(from, to Status) (ChangeLog, bool) {
	var match ChangeLog
	found := false
	for _, change := range e.Changes {
		if change.OldStatus != from || change.NewStatus != to {
			continue
		}
		if !found || change.ChangedOn.After(match.ChangedOn) {
			match = change
			found = true
		}
	}
	return match, found
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ExperimentURL is the public detail page for the experiment.
func (e *Experiment) ExperimentURL(hostname string) string {
	return fmt.Sprintf("https://%s/experiments/%s/", hostname, e.Slug)
}

func (e *Experiment) AcceptURL(hostname string) string {
	return fmt.Sprintf("https://%s/api/v1/experiments/%s/accept/", hostname, e.Slug)
}

func (e *Experiment) RejectURL(hostname string) string {
	return fmt.Sprintf("https://%s/api/v1/experiments/%s/reject/", hostname, e.Slug)
}

func (e *Experiment) TestTubeURL() string {
	return fmt.Sprintf("%s/experiments/%s/", testTubeBaseURL, e.Slug)
}

// BugzillaURL resolves the bug page through detail, or "" when no bug is filed.
func (e *Experiment) BugzillaURL(detail func(id string) string) string {
	if e.BugzillaID == "" || detail == nil {
		return ""
	}
	return detail(e.BugzillaID)
}
