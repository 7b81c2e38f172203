package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"experimenter/internal/experiments"
)

func TestFromExperiment(t *testing.T) {
	start := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	live := time.Date(2019, 3, 4, 15, 30, 0, 0, time.UTC)
	e := &experiments.Experiment{
		ID:                 7,
		Type:               experiments.TypePref,
		Status:             experiments.StatusLive,
		Name:               "Pref Flip",
		Slug:               "pref-flip",
		PrefKey:            "browser.test",
		PrefType:           experiments.PrefTypeBool,
		PrefBranch:         experiments.PrefBranchDefault,
		PopulationPercent:  0.5,
		FirefoxVersion:     "57.0",
		FirefoxChannel:     experiments.ChannelNightly,
		ProposedStartDate:  start,
		ProposedEnrollment: 7,
		ProposedDuration:   28,
		BugzillaID:         "12",
		Variants: []experiments.Variant{
			{IsControl: true, Name: "Control", Slug: "control", Ratio: 50, Value: json.RawMessage(`false`)},
		},
		Changes: []experiments.ChangeLog{
			{ChangedOn: live, OldStatus: experiments.StatusAccepted, NewStatus: experiments.StatusLive, ChangedByEmail: "a@example.com"},
		},
	}

	got := FromExperiment(e, "experimenter.test", func(id string) string { return "https://bugzilla.test/show_bug.cgi?id=" + id })

	startMS := start.UnixMilli()
	liveMS := time.Date(2019, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli()
	endMS := start.AddDate(0, 0, 28).UnixMilli()
	want := Experiment{
		ExperimentURL:      "https://experimenter.test/experiments/pref-flip/",
		Type:               "pref",
		Name:               "Pref Flip",
		Slug:               "pref-flip",
		Status:             "Live",
		PrefKey:            "browser.test",
		PrefType:           "boolean",
		PrefBranch:         "default",
		PopulationPercent:  "0.5000",
		FirefoxVersion:     "57.0",
		FirefoxChannel:     "Nightly",
		ProposedStartDate:  &startMS,
		ProposedEnrollment: 7,
		ProposedDuration:   28,
		StartDate:          &liveMS,
		EndDate:            &endMS,
		BugzillaURL:        "https://bugzilla.test/show_bug.cgi?id=12",
		Variants: []Variant{
			{IsControl: true, Name: "Control", Slug: "control", Ratio: 50, Value: "false"},
		},
		Changes: []Change{
			{
				ChangedOn:    "2019-03-04T15:30:00.000Z",
				ChangedBy:    "a@example.com",
				PrettyStatus: "Launched Experiment",
				NewStatus:    "Live",
				OldStatus:    "Accepted",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromExperiment mismatch (-want +got):\n%s", diff)
	}
}

func TestFromExperimentWithoutDates(t *testing.T) {
	got := FromExperiment(&experiments.Experiment{Slug: "x"}, "h", nil)
	if got.ProposedStartDate != nil || got.StartDate != nil || got.EndDate != nil {
		t.Fatalf("expected nil dates, got %+v", got)
	}
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := decoded["proposed_start_date"]; !ok || v != nil {
		t.Fatalf("expected explicit null proposed_start_date, got %v", v)
	}
	if _, ok := decoded["variants"].([]any); !ok {
		t.Fatalf("expected variants array, got %T", decoded["variants"])
	}
}
