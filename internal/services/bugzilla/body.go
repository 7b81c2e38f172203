package bugzilla

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"experimenter/internal/experiments"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type variantView struct {
	IsControl   bool
	Name        string
	Ratio       int
	Value       string
	Description string
}

type bodyView struct {
	Name                  string
	ShortDescription      string
	URL                   string
	PrefKey               string
	Variants              []variantView
	Population            string
	StartDate             string
	EndDate               string
	Duration              int
	Objectives            string
	AnalysisOwner         string
	RiskReleasePopulation string
	QAStatus              string
}

func newBodyView(e *experiments.Experiment, hostname string) bodyView {
	view := bodyView{
		Name:                  e.Name,
		ShortDescription:      e.ShortDescription,
		URL:                   e.ExperimentURL(hostname),
		PrefKey:               e.PrefKey,
		Population:            e.Population(),
		Duration:              e.ProposedDuration,
		Objectives:            e.Objectives,
		AnalysisOwner:         e.AnalysisOwner,
		RiskReleasePopulation: yesNo(e.RiskReleasePopulation),
		QAStatus:              e.QAStatus,
	}
	if start := e.StartDate(); !start.IsZero() {
		view.StartDate = start.Format(experiments.DateLayout)
	}
	if end := e.EndDate(); !end.IsZero() {
		view.EndDate = end.Format(experiments.DateLayout)
	}
	for _, v := range e.Variants {
		view.Variants = append(view.Variants, variantView{
			IsControl:   v.IsControl,
			Name:        v.Name,
			Ratio:       v.Ratio,
			Value:       v.ValueString(),
			Description: v.Description,
		})
	}
	return view
}

func yesNo(value *bool) string {
	switch {
	case value == nil:
		return "Unknown"
	case *value:
		return "Yes"
	default:
		return "No"
	}
}

// OverviewBody renders the description used when the bug is filed.
func OverviewBody(e *experiments.Experiment, hostname string) (string, error) {
	return render("overview.tmpl", newBodyView(e, hostname))
}

// DetailsBody renders the pref or addon study details posted once the
// experiment is ready to ship.
func DetailsBody(e *experiments.Experiment, hostname string) (string, error) {
	name := "pref.tmpl"
	if e.IsAddon() {
		name = "addon.tmpl"
	}
	return render(name, newBodyView(e, hostname))
}

func render(name string, view bodyView) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, view); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
