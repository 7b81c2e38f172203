package testsupport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"experimenter/internal/experiments"
	"experimenter/internal/store"
)

func boolPtr(v bool) *bool { return &v }

// ReadyExperiment returns an unsaved pref experiment whose every section is
// complete once its variants are stored.
func ReadyExperiment(name string) *experiments.Experiment {
	e := experiments.New(experiments.TypePref)
	e.Name = name
	e.Slug = experiments.Slugify(name)
	e.ShortDescription = "A short description of " + name
	e.ProposedStartDate = time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	e.ProposedEnrollment = 7
	e.ProposedDuration = 28
	e.PopulationPercent = 0.5
	e.FirefoxVersion = "57.0"
	e.FirefoxChannel = experiments.ChannelNightly
	e.PrefKey = "browser.test.enabled"
	e.PrefType = experiments.PrefTypeBool
	e.PrefBranch = experiments.PrefBranchDefault
	e.Objectives = "Learn whether the pref helps"
	e.Analysis = "Compare retention across branches"
	e.RiskPartnerRelated = boolPtr(false)
	e.RiskBrand = boolPtr(false)
	e.RiskFastShipped = boolPtr(false)
	e.RiskConfidential = boolPtr(false)
	e.RiskReleasePopulation = boolPtr(false)
	e.Testing = "Flip the pref and confirm both branches"
	return e
}

// DefaultVariants returns a control and a treatment branch splitting 50/50.
func DefaultVariants() []experiments.Variant {
	return []experiments.Variant{
		{IsControl: true, Name: "Control", Slug: "control", Description: "Pref off", Ratio: 50, Value: json.RawMessage(`false`)},
		{Name: "Treatment", Slug: "treatment", Description: "Pref on", Ratio: 50, Value: json.RawMessage(`true`)},
	}
}

// CreateExperiment persists a ready draft named name owned by owner, with
// default variants.
func CreateExperiment(t testing.TB, st *store.Store, owner experiments.User, name string) *experiments.Experiment {
	t.Helper()

	ctx := context.Background()
	e := ReadyExperiment(name)
	if err := st.CreateExperiment(ctx, e, owner, "Created Experiment"); err != nil {
		t.Fatalf("CreateExperiment(%q): %v", name, err)
	}
	if err := st.SaveExperimentVariants(ctx, e, DefaultVariants(), owner, "Edited Experiment"); err != nil {
		t.Fatalf("SaveExperimentVariants(%q): %v", name, err)
	}
	return e
}

// CreateExperimentWithStatus persists a ready experiment and walks it through
// the workflow until it reaches status, signing off reviews on the way.
func CreateExperimentWithStatus(t testing.TB, st *store.Store, owner experiments.User, name string, status experiments.Status) *experiments.Experiment {
	t.Helper()

	ctx := context.Background()
	e := CreateExperiment(t, st, owner, name)
	for _, next := range pathTo(status) {
		if next == experiments.StatusShip {
			e.Reviews.Science = true
			e.Reviews.Relman = true
			e.Reviews.QA = true
			if err := st.SaveExperiment(ctx, e, owner, "Signed off"); err != nil {
				t.Fatalf("SaveExperiment(%q): %v", name, err)
			}
		}
		if err := st.TransitionExperiment(ctx, e, next, owner, ""); err != nil {
			t.Fatalf("TransitionExperiment(%q, %s): %v", name, next, err)
		}
	}
	return e
}

func pathTo(status experiments.Status) []experiments.Status {
	switch status {
	case experiments.StatusReview:
		return []experiments.Status{experiments.StatusReview}
	case experiments.StatusShip:
		return []experiments.Status{experiments.StatusReview, experiments.StatusShip}
	case experiments.StatusAccepted:
		return []experiments.Status{experiments.StatusReview, experiments.StatusShip, experiments.StatusAccepted}
	case experiments.StatusLive:
		return []experiments.Status{experiments.StatusReview, experiments.StatusShip, experiments.StatusAccepted, experiments.StatusLive}
	case experiments.StatusComplete:
		return []experiments.Status{experiments.StatusReview, experiments.StatusShip, experiments.StatusAccepted, experiments.StatusLive, experiments.StatusComplete}
	case experiments.StatusRejected:
		return []experiments.Status{experiments.StatusReview, experiments.StatusRejected}
	default:
		return nil
	}
}
