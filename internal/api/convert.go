package api

import (
	"strconv"
	"time"

	"experimenter/internal/experiments"
)

// FromExperiment converts an experiment to its API representation. hostname
// builds the public detail URL and bugURL, when set, resolves bug links.
func FromExperiment(e *experiments.Experiment, hostname string, bugURL func(id string) string) Experiment {
	if e == nil {
		return Experiment{}
	}

	dto := Experiment{
		ExperimentURL:      e.ExperimentURL(hostname),
		Type:               string(e.Type),
		Name:               e.Name,
		Slug:               e.Slug,
		Status:             string(e.Status),
		Archived:           e.Archived,
		Project:            e.ProjectSlug,
		Owner:              e.OwnerEmail,
		ShortDescription:   e.ShortDescription,
		AddonExperimentID:  e.AddonExperimentID,
		AddonTestingURL:    e.AddonTestingURL,
		AddonReleaseURL:    e.AddonReleaseURL,
		PrefKey:            e.PrefKey,
		PrefType:           e.PrefType,
		PrefBranch:         e.PrefBranch,
		PopulationPercent:  strconv.FormatFloat(e.PopulationPercent, 'f', 4, 64),
		FirefoxVersion:     e.FirefoxVersion,
		FirefoxChannel:     e.FirefoxChannel,
		ClientMatching:     e.ClientMatching,
		ProposedStartDate:  jsTimestamp(e.ProposedStartDate),
		ProposedEnrollment: e.ProposedEnrollment,
		ProposedDuration:   e.ProposedDuration,
		StartDate:          jsTimestamp(e.StartDate()),
		EndDate:            jsTimestamp(e.EndDate()),
		BugzillaURL:        e.BugzillaURL(bugURL),
		Variants:           make([]Variant, 0, len(e.Variants)),
		Changes:            make([]Change, 0, len(e.Changes)),
	}
	for _, v := range e.Variants {
		dto.Variants = append(dto.Variants, FromVariant(v))
	}
	for _, c := range e.Changes {
		dto.Changes = append(dto.Changes, FromChange(c))
	}
	return dto
}

// FromExperiments converts a list, preserving order.
func FromExperiments(list []*experiments.Experiment, hostname string, bugURL func(id string) string) []Experiment {
	out := make([]Experiment, 0, len(list))
	for _, e := range list {
		out = append(out, FromExperiment(e, hostname, bugURL))
	}
	return out
}

// FromVariant converts a branch.
func FromVariant(v experiments.Variant) Variant {
	return Variant{
		Description: v.Description,
		IsControl:   v.IsControl,
		Name:        v.Name,
		Ratio:       v.Ratio,
		Slug:        v.Slug,
		Value:       v.ValueString(),
	}
}

// FromChange converts a changelog entry.
func FromChange(c experiments.ChangeLog) Change {
	return Change{
		ChangedOn:    formatTime(c.ChangedOn),
		ChangedBy:    c.ChangedByEmail,
		PrettyStatus: c.PrettyStatus(),
		NewStatus:    string(c.NewStatus),
		OldStatus:    string(c.OldStatus),
		Message:      c.Message,
	}
}

// FromNotifications converts popped notifications.
func FromNotifications(list []experiments.Notification) []Notification {
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		out = append(out, Notification{ID: n.ID, Message: n.Message, CreatedOn: formatTime(n.CreatedOn)})
	}
	return out
}

// jsTimestamp renders t as milliseconds since the epoch, or nil when unset.
func jsTimestamp(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
