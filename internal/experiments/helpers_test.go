package experiments_test

import (
	"encoding/json"
	"time"

	"experimenter/internal/experiments"
)

func boolPtr(v bool) *bool { return &v }

// readyExperiment returns a persisted draft with every section complete.
func readyExperiment() *experiments.Experiment {
	e := experiments.New(experiments.TypePref)
	e.ID = 1
	e.Name = "Pref Flip"
	e.Slug = "pref-flip"
	e.ShortDescription = "Flip a pref"
	e.ProposedStartDate = time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	e.ProposedEnrollment = 7
	e.ProposedDuration = 28
	e.PopulationPercent = 0.5
	e.FirefoxVersion = "57.0"
	e.FirefoxChannel = experiments.ChannelNightly
	e.Objectives = "Learn things"
	e.Analysis = "Measure things"
	e.RiskPartnerRelated = boolPtr(false)
	e.RiskBrand = boolPtr(false)
	e.RiskFastShipped = boolPtr(false)
	e.RiskConfidential = boolPtr(false)
	e.RiskReleasePopulation = boolPtr(false)
	e.Testing = "Test every branch"
	e.Variants = []experiments.Variant{
		{ID: 1, ExperimentID: 1, IsControl: true, Name: "Control", Slug: "control", Ratio: 50, Value: json.RawMessage(`false`)},
		{ID: 2, ExperimentID: 1, Name: "Treatment", Slug: "treatment", Ratio: 50, Value: json.RawMessage(`true`)},
	}
	return e
}
