package experiments

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for proposed start dates in forms.
const DateLayout = "2006-01-02"

const (
	maxNameLength   = 255
	variantsPrefix  = "variants"
	totalFormsField = variantsPrefix + "-TOTAL_FORMS"
)

// OverviewForm carries the overview section, also used to create experiments.
type OverviewForm struct {
	Type                   Type
	Name                   string
	ShortDescription       string
	RelatedWork            string
	DataScienceBugzillaURL string
	FeatureBugzillaURL     string
	ProposedStartDate      time.Time
	ProposedEnrollment     int
	ProposedDuration       int

	decodeErrs FieldErrors
}

// DecodeOverviewForm reads an overview form submission.
func DecodeOverviewForm(values url.Values) OverviewForm {
	errs := FieldErrors{}
	form := OverviewForm{
		Type:                   Type(strings.TrimSpace(values.Get("type"))),
		Name:                   strings.TrimSpace(values.Get("name")),
		ShortDescription:       strings.TrimSpace(values.Get("short_description")),
		RelatedWork:            strings.TrimSpace(values.Get("related_work")),
		DataScienceBugzillaURL: strings.TrimSpace(values.Get("data_science_bugzilla_url")),
		FeatureBugzillaURL:     strings.TrimSpace(values.Get("feature_bugzilla_url")),
		ProposedEnrollment:     decodeInt(values, "proposed_enrollment", errs),
		ProposedDuration:       decodeInt(values, "proposed_duration", errs),
	}
	if raw := strings.TrimSpace(values.Get("proposed_start_date")); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			errs.Add("proposed_start_date", "Enter a valid date.")
		}
		form.ProposedStartDate = parsed
	}
	form.decodeErrs = errs
	return form
}

// OverviewFormFrom pre-fills the form from e.
func OverviewFormFrom(e *Experiment) OverviewForm {
	return OverviewForm{
		Type:                   e.Type,
		Name:                   e.Name,
		ShortDescription:       e.ShortDescription,
		RelatedWork:            e.RelatedWork,
		DataScienceBugzillaURL: e.DataScienceBugzillaURL,
		FeatureBugzillaURL:     e.FeatureBugzillaURL,
		ProposedStartDate:      e.ProposedStartDate,
		ProposedEnrollment:     e.ProposedEnrollment,
		ProposedDuration:       e.ProposedDuration,
	}
}

// Slug derives the experiment slug from the name.
func (f OverviewForm) Slug() string { return Slugify(f.Name) }

// Validate checks the form. Bugzilla links must point at bugzillaHost.
func (f OverviewForm) Validate(bugzillaHost string) error {
	return f.fieldErrors(bugzillaHost).Err()
}

// ValidateNew checks a form that creates an experiment. The derived slug
// must not collide with a fixed route under /experiments/.
func (f OverviewForm) ValidateNew(bugzillaHost string) error {
	errs := f.fieldErrors(bugzillaHost)
	if _, reserved := reservedSlugs[f.Slug()]; reserved && !errs.Has("name") {
		errs.Add("name", "This name is reserved. Please choose another.")
	}
	return errs.Err()
}

var reservedSlugs = map[string]struct{}{
	"new": {},
}

func (f OverviewForm) fieldErrors(bugzillaHost string) FieldErrors {
	errs := FieldErrors{}
	errs.merge(f.decodeErrs)

	if !ValidType(f.Type) {
		errs.Add("type", fmt.Sprintf("Select a valid choice. %q is not one of the available choices.", f.Type))
	}
	switch {
	case f.Name == "":
		errs.Add("name", "This field is required.")
	case len(f.Name) > maxNameLength:
		errs.Add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxNameLength))
	case f.Slug() == "":
		errs.Add("name", "This name must include non-punctuation characters.")
	}
	if f.ShortDescription == "" {
		errs.Add("short_description", "This field is required.")
	}
	for field, value := range map[string]string{
		"data_science_bugzilla_url": f.DataScienceBugzillaURL,
		"feature_bugzilla_url":      f.FeatureBugzillaURL,
	} {
		if value != "" && !underHost(value, bugzillaHost) {
			errs.Add(field, "Please provide a valid Bugzilla URL")
		}
	}
	if f.ProposedEnrollment < 0 {
		errs.Add("proposed_enrollment", "Ensure this value is greater than or equal to 0.")
	}
	if f.ProposedDuration < 0 {
		errs.Add("proposed_duration", "Ensure this value is greater than or equal to 0.")
	}
	if f.ProposedEnrollment > 0 && f.ProposedDuration > 0 && f.ProposedEnrollment > f.ProposedDuration {
		errs.Add("proposed_enrollment", "Enrollment duration is optional, but if set, must be lower than the experiment duration.")
	}
	return errs
}

// Apply copies the form onto e. The slug is only assigned to unsaved experiments.
func (f OverviewForm) Apply(e *Experiment) {
	e.Type = f.Type
	e.Name = f.Name
	if e.ID == 0 || e.Slug == "" {
		e.Slug = f.Slug()
	}
	e.ShortDescription = f.ShortDescription
	e.RelatedWork = f.RelatedWork
	e.DataScienceBugzillaURL = f.DataScienceBugzillaURL
	e.FeatureBugzillaURL = f.FeatureBugzillaURL
	e.ProposedStartDate = f.ProposedStartDate
	e.ProposedEnrollment = f.ProposedEnrollment
	e.ProposedDuration = f.ProposedDuration
}

// BranchForm is one row of the variants formset.
type BranchForm struct {
	IsControl   bool
	Ratio       int
	Name        string
	Description string
	Value       string
}

// VariantsForm carries the population section plus the branches formset.
// Pref and addon fields are validated according to the experiment type.
type VariantsForm struct {
	PopulationPercent float64
	FirefoxVersion    string
	FirefoxChannel    string
	ClientMatching    string

	PrefKey    string
	PrefType   string
	PrefBranch string

	AddonExperimentID string
	AddonTestingURL   string
	AddonReleaseURL   string

	Branches []BranchForm

	decodeErrs FieldErrors
}

// DecodeVariantsForm reads a variants submission including the
// "variants-N-field" formset rows.
func DecodeVariantsForm(values url.Values) VariantsForm {
	errs := FieldErrors{}
	form := VariantsForm{
		FirefoxVersion:    strings.TrimSpace(values.Get("firefox_version")),
		FirefoxChannel:    strings.TrimSpace(values.Get("firefox_channel")),
		ClientMatching:    strings.TrimSpace(values.Get("client_matching")),
		PrefKey:           strings.TrimSpace(values.Get("pref_key")),
		PrefType:          strings.TrimSpace(values.Get("pref_type")),
		PrefBranch:        strings.TrimSpace(values.Get("pref_branch")),
		AddonExperimentID: strings.TrimSpace(values.Get("addon_experiment_id")),
		AddonTestingURL:   strings.TrimSpace(values.Get("addon_testing_url")),
		AddonReleaseURL:   strings.TrimSpace(values.Get("addon_release_url")),
	}
	if raw := strings.TrimSpace(values.Get("population_percent")); raw != "" {
		percent, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.Add("population_percent", "Enter a number.")
		}
		form.PopulationPercent = percent
	}

	total, err := strconv.Atoi(strings.TrimSpace(values.Get(totalFormsField)))
	if err != nil || total < 0 {
		errs.Add(totalFormsField, "ManagementForm data is missing or has been tampered with")
		total = 0
	}
	for i := 0; i < total; i++ {
		field := func(name string) string {
			return strings.TrimSpace(values.Get(fmt.Sprintf("%s-%d-%s", variantsPrefix, i, name)))
		}
		branch := BranchForm{
			IsControl:   parseCheckbox(field("is_control")),
			Name:        field("name"),
			Description: field("description"),
			Value:       field("value"),
		}
		rawRatio := field("ratio")
		if !branch.IsControl && branch.Name == "" && branch.Description == "" && branch.Value == "" && rawRatio == "" {
			continue
		}
		if rawRatio != "" {
			ratio, err := strconv.Atoi(rawRatio)
			if err != nil {
				errs.Add(fmt.Sprintf("%s-%d-ratio", variantsPrefix, i), "Enter a whole number.")
			}
			branch.Ratio = ratio
		}
		form.Branches = append(form.Branches, branch)
	}
	form.decodeErrs = errs
	return form
}

// VariantsFormFrom pre-fills the form from e and its saved variants.
func VariantsFormFrom(e *Experiment) VariantsForm {
	form := VariantsForm{
		PopulationPercent: e.PopulationPercent,
		FirefoxVersion:    e.FirefoxVersion,
		FirefoxChannel:    e.FirefoxChannel,
		ClientMatching:    e.ClientMatching,
		PrefKey:           e.PrefKey,
		PrefType:          e.PrefType,
		PrefBranch:        e.PrefBranch,
		AddonExperimentID: e.AddonExperimentID,
		AddonTestingURL:   e.AddonTestingURL,
		AddonReleaseURL:   e.AddonReleaseURL,
	}
	for _, v := range e.Variants {
		form.Branches = append(form.Branches, BranchForm{
			IsControl:   v.IsControl,
			Ratio:       v.Ratio,
			Name:        v.Name,
			Description: v.Description,
			Value:       v.ValueString(),
		})
	}
	return form
}

// Validate checks population, branches, and the type-specific fields.
func (f VariantsForm) Validate(t Type) error {
	errs := FieldErrors{}
	errs.merge(f.decodeErrs)

	if p := f.PopulationPercent; math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 || p > 100 {
		errs.Add("population_percent", "The population size must be between 0 and 100 percent.")
	}
	if !contains(Versions, f.FirefoxVersion) {
		errs.Add("firefox_version", "Select a valid Firefox version.")
	}
	if !contains(Channels, f.FirefoxChannel) {
		errs.Add("firefox_channel", "Select a valid Firefox channel.")
	}

	switch t {
	case TypePref:
		if f.PrefKey == "" {
			errs.Add("pref_key", "This field is required.")
		}
		if !contains(PrefTypes, f.PrefType) {
			errs.Add("pref_type", "Select a valid pref type.")
		}
		if !contains(PrefBranches, f.PrefBranch) {
			errs.Add("pref_branch", "Select a valid pref branch.")
		}
	case TypeAddon:
		if f.AddonExperimentID == "" {
			errs.Add("addon_experiment_id", "This field is required.")
		}
		if f.AddonTestingURL == "" {
			errs.Add("addon_testing_url", "This field is required.")
		} else if !isHTTPURL(f.AddonTestingURL) {
			errs.Add("addon_testing_url", "Enter a valid URL.")
		}
		if f.AddonReleaseURL != "" && !isHTTPURL(f.AddonReleaseURL) {
			errs.Add("addon_release_url", "Enter a valid URL.")
		}
	}

	f.validateBranches(t, errs)
	return errs.Err()
}

func (f VariantsForm) validateBranches(t Type, errs FieldErrors) {
	if len(f.Branches) < 2 {
		errs.Add("variants", "An experiment must have a control and at least one treatment branch.")
	}
	controls := 0
	total := 0
	names := map[string]bool{}
	slugs := map[string]bool{}
	for i, branch := range f.Branches {
		key := func(field string) string { return fmt.Sprintf("%s-%d-%s", variantsPrefix, i, field) }
		if branch.IsControl {
			controls++
		}
		if branch.Ratio < 1 || branch.Ratio > 100 {
			errs.Add(key("ratio"), "Branch sizes must be between 1 and 100.")
		}
		total += branch.Ratio
		if branch.Name == "" {
			errs.Add(key("name"), "This field is required.")
		} else {
			lower := strings.ToLower(branch.Name)
			slug := Slugify(branch.Name)
			switch {
			case slug == "":
				errs.Add(key("name"), "This name must include non-punctuation characters.")
			case names[lower] || slugs[slug]:
				errs.Add(key("name"), "All branches must have a unique name.")
			}
			names[lower] = true
			slugs[slug] = true
		}
		if t == TypePref {
			if msg := checkPrefValue(f.PrefType, branch.Value); msg != "" {
				errs.Add(key("value"), msg)
			}
		}
	}
	if len(f.Branches) > 0 && controls != 1 {
		errs.Add("variants", "Exactly one branch must be the control.")
	}
	if len(f.Branches) > 0 && total != 100 {
		errs.Add("variants", "The size of all branches must add up to 100.")
	}
}

// Apply copies the population and type fields onto e and returns the new
// variant set. Slugs are derived from branch names.
func (f VariantsForm) Apply(e *Experiment) []Variant {
	e.PopulationPercent = f.PopulationPercent
	e.FirefoxVersion = f.FirefoxVersion
	e.FirefoxChannel = f.FirefoxChannel
	e.ClientMatching = f.ClientMatching
	if e.IsPref() {
		e.PrefKey, e.PrefType, e.PrefBranch = f.PrefKey, f.PrefType, f.PrefBranch
	} else {
		e.AddonExperimentID, e.AddonTestingURL, e.AddonReleaseURL = f.AddonExperimentID, f.AddonTestingURL, f.AddonReleaseURL
	}

	variants := make([]Variant, 0, len(f.Branches))
	for _, branch := range f.Branches {
		v := Variant{
			ExperimentID: e.ID,
			IsControl:    branch.IsControl,
			Name:         branch.Name,
			Slug:         Slugify(branch.Name),
			Description:  branch.Description,
			Ratio:        branch.Ratio,
		}
		if e.IsPref() && branch.Value != "" {
			v.Value = json.RawMessage(branch.Value)
		}
		variants = append(variants, v)
	}
	return variants
}

// checkPrefValue returns a message when raw is not JSON of prefType.
func checkPrefValue(prefType, raw string) string {
	if raw == "" {
		return "This field is required."
	}
	var decoded any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		return "The pref value must be valid JSON."
	}
	switch prefType {
	case PrefTypeBool:
		if _, ok := decoded.(bool); !ok {
			return "The pref value must be a boolean."
		}
	case PrefTypeInt:
		n, ok := decoded.(json.Number)
		if !ok {
			return "The pref value must be an integer."
		}
		if _, err := n.Int64(); err != nil {
			return "The pref value must be an integer."
		}
	case PrefTypeString:
		if _, ok := decoded.(string); !ok {
			return "The pref value must be a string."
		}
	case PrefTypeJSON:
		s, ok := decoded.(string)
		if !ok || !json.Valid([]byte(s)) {
			return "The pref value must be a string containing valid JSON."
		}
	}
	return ""
}

// ObjectivesForm carries the objectives and analysis sections.
type ObjectivesForm struct {
	Objectives    string
	AnalysisOwner string
	Analysis      string
}

func DecodeObjectivesForm(values url.Values) ObjectivesForm {
	return ObjectivesForm{
		Objectives:    strings.TrimSpace(values.Get("objectives")),
		AnalysisOwner: strings.TrimSpace(values.Get("analysis_owner")),
		Analysis:      strings.TrimSpace(values.Get("analysis")),
	}
}

func ObjectivesFormFrom(e *Experiment) ObjectivesForm {
	return ObjectivesForm{Objectives: e.Objectives, AnalysisOwner: e.AnalysisOwner, Analysis: e.Analysis}
}

func (f ObjectivesForm) Apply(e *Experiment) {
	e.Objectives = f.Objectives
	e.AnalysisOwner = f.AnalysisOwner
	e.Analysis = f.Analysis
}

// RisksForm carries the risks and testing sections. Risk questions stay
// unanswered (nil) until the user picks yes or no.
type RisksForm struct {
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
}

func DecodeRisksForm(values url.Values) RisksForm {
	return RisksForm{
		RiskPartnerRelated:       parseTriState(values.Get("risk_partner_related")),
		RiskBrand:                parseTriState(values.Get("risk_brand")),
		RiskFastShipped:          parseTriState(values.Get("risk_fast_shipped")),
		RiskConfidential:         parseTriState(values.Get("risk_confidential")),
		RiskReleasePopulation:    parseTriState(values.Get("risk_release_population")),
		RiskTechnical:            parseCheckbox(values.Get("risk_technical")),
		RiskTechnicalDescription: strings.TrimSpace(values.Get("risk_technical_description")),
		Risks:                    strings.TrimSpace(values.Get("risks")),
		Testing:                  strings.TrimSpace(values.Get("testing")),
		TestBuilds:               strings.TrimSpace(values.Get("test_builds")),
		QAStatus:                 strings.TrimSpace(values.Get("qa_status")),
	}
}

func RisksFormFrom(e *Experiment) RisksForm {
	return RisksForm{
		RiskPartnerRelated:       e.RiskPartnerRelated,
		RiskBrand:                e.RiskBrand,
		RiskFastShipped:          e.RiskFastShipped,
		RiskConfidential:         e.RiskConfidential,
		RiskReleasePopulation:    e.RiskReleasePopulation,
		RiskTechnical:            e.RiskTechnical,
		RiskTechnicalDescription: e.RiskTechnicalDescription,
		Risks:                    e.Risks,
		Testing:                  e.Testing,
		TestBuilds:               e.TestBuilds,
		QAStatus:                 e.QAStatus,
	}
}

func (f RisksForm) Apply(e *Experiment) {
	e.RiskPartnerRelated = f.RiskPartnerRelated
	e.RiskBrand = f.RiskBrand
	e.RiskFastShipped = f.RiskFastShipped
	e.RiskConfidential = f.RiskConfidential
	e.RiskReleasePopulation = f.RiskReleasePopulation
	e.RiskTechnical = f.RiskTechnical
	e.RiskTechnicalDescription = f.RiskTechnicalDescription
	e.Risks = f.Risks
	e.Testing = f.Testing
	e.TestBuilds = f.TestBuilds
	e.QAStatus = f.QAStatus
}

// DecodeReviewsForm reads the sign-off checkboxes. Missing boxes are false.
func DecodeReviewsForm(values url.Values) Reviews {
	box := func(name string) bool { return parseCheckbox(values.Get(name)) }
	return Reviews{
		Science:       box("review_science"),
		Engineering:   box("review_engineering"),
		QARequested:   box("review_qa_requested"),
		IntentToShip:  box("review_intent_to_ship"),
		Bugzilla:      box("review_bugzilla"),
		QA:            box("review_qa"),
		Relman:        box("review_relman"),
		Advisory:      box("review_advisory"),
		Legal:         box("review_legal"),
		UX:            box("review_ux"),
		Security:      box("review_security"),
		VP:            box("review_vp"),
		DataSteward:   box("review_data_steward"),
		Comms:         box("review_comms"),
		ImpactedTeams: box("review_impacted_teams"),
	}
}

// CommentForm adds a comment to one section.
type CommentForm struct {
	Section string
	Text    string
}

func DecodeCommentForm(values url.Values) CommentForm {
	return CommentForm{
		Section: strings.TrimSpace(values.Get("section")),
		Text:    strings.TrimSpace(values.Get("text")),
	}
}

func (f CommentForm) Validate() error {
	errs := FieldErrors{}
	if !ValidSection(f.Section) {
		errs.Add("section", fmt.Sprintf("Select a valid choice. %q is not one of the available choices.", f.Section))
	}
	if f.Text == "" {
		errs.Add("text", "This field is required.")
	}
	return errs.Err()
}

// ParseStatusForm reads the requested status from a status form post.
func ParseStatusForm(values url.Values) (Status, error) {
	status, ok := ParseStatus(values.Get("status"))
	if !ok {
		errs := FieldErrors{}
		errs.Add("status", "Select a valid status.")
		return "", errs
	}
	return status, nil
}

func decodeInt(values url.Values, field string, errs FieldErrors) int {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(field, "Enter a whole number.")
	}
	return n
}

func parseCheckbox(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseTriState(raw string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		v = true
	case "false", "0", "no":
		v = false
	default:
		return nil
	}
	return &v
}

func underHost(raw, host string) bool {
	target, err := url.Parse(raw)
	if err != nil || target.Host == "" {
		return false
	}
	base, err := url.Parse(host)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(target.Host, base.Host)
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
