package experiments

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"experimenter/internal/services"
)

// Ordering selects the sort applied to experiment lists.
type Ordering string

const (
	OrderLatestChangeDesc   Ordering = "-latest_change"
	OrderLatestChangeAsc    Ordering = "latest_change"
	OrderFirefoxVersionAsc  Ordering = "firefox_version"
	OrderFirefoxVersionDesc Ordering = "-firefox_version"
	OrderFirefoxChannelAsc  Ordering = "firefox_channel"
	OrderFirefoxChannelDesc Ordering = "-firefox_channel"

	DefaultOrdering = OrderLatestChangeDesc
)

var orderingLabels = []struct {
	ordering Ordering
	label    string
}{
	{OrderLatestChangeDesc, "Most Recently Updated"},
	{OrderLatestChangeAsc, "Least Recently Updated"},
	{OrderFirefoxVersionAsc, "Firefox Version Ascending"},
	{OrderFirefoxVersionDesc, "Firefox Version Descending"},
	{OrderFirefoxChannelAsc, "Firefox Channel Sort"},
	{OrderFirefoxChannelDesc, "Firefox Channel Reverse Sort"},
}

// OrderingChoice pairs an ordering with its display label.
type OrderingChoice struct {
	Value Ordering
	Label string
}

// OrderingChoices lists the orderings offered on the list page.
func OrderingChoices() []OrderingChoice {
	out := make([]OrderingChoice, 0, len(orderingLabels))
	for _, entry := range orderingLabels {
		out = append(out, OrderingChoice{Value: entry.ordering, Label: entry.label})
	}
	return out
}

// ParseOrdering validates value; empty selects the default.
func ParseOrdering(value string) (Ordering, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultOrdering, nil
	}
	for _, entry := range orderingLabels {
		if string(entry.ordering) == trimmed {
			return entry.ordering, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "experiments", "ordering",
		fmt.Sprintf("unknown ordering %q", trimmed), nil)
}

// Filter narrows experiment lists. Zero values match everything except
// that archived experiments are hidden unless Archived is set.
type Filter struct {
	Archived       bool
	ProjectID      int64
	ProjectSlug    string
	OwnerID        int64
	Status         Status
	FirefoxVersion string
	FirefoxChannel string
	Type           Type
}

// DecodeFilter reads list filters from query parameters.
func DecodeFilter(values url.Values) (Filter, error) {
	errs := FieldErrors{}
	filter := Filter{
		Archived:       parseCheckbox(values.Get("archived")),
		ProjectSlug:    strings.TrimSpace(values.Get("project__slug")),
		FirefoxVersion: strings.TrimSpace(values.Get("firefox_version")),
		FirefoxChannel: strings.TrimSpace(values.Get("firefox_channel")),
		Type:           Type(strings.TrimSpace(values.Get("type"))),
	}
	for _, field := range []string{"project", "owner"} {
		raw := strings.TrimSpace(values.Get(field))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			errs.Add(field, "Select a valid choice.")
			continue
		}
		if field == "project" {
			filter.ProjectID = id
		} else {
			filter.OwnerID = id
		}
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			errs.Add("status", "Select a valid status.")
		}
		filter.Status = status
	}
	if filter.Type != "" && !ValidType(filter.Type) {
		errs.Add("type", "Select a valid type.")
	}
	if filter.FirefoxVersion != "" && !contains(Versions, filter.FirefoxVersion) {
		errs.Add("firefox_version", "Select a valid Firefox version.")
	}
	if filter.FirefoxChannel != "" && !contains(Channels, filter.FirefoxChannel) {
		errs.Add("firefox_channel", "Select a valid Firefox channel.")
	}
	return filter, errs.Err()
}

// Encode renders the filter as query parameters, omitting zero fields.
func (f Filter) Encode() url.Values {
	values := url.Values{}
	if f.Archived {
		values.Set("archived", "on")
	}
	if f.ProjectID != 0 {
		values.Set("project", strconv.FormatInt(f.ProjectID, 10))
	}
	if f.ProjectSlug != "" {
		values.Set("project__slug", f.ProjectSlug)
	}
	if f.OwnerID != 0 {
		values.Set("owner", strconv.FormatInt(f.OwnerID, 10))
	}
	if f.Status != "" {
		values.Set("status", string(f.Status))
	}
	if f.FirefoxVersion != "" {
		values.Set("firefox_version", f.FirefoxVersion)
	}
	if f.FirefoxChannel != "" {
		values.Set("firefox_channel", f.FirefoxChannel)
	}
	if f.Type != "" {
		values.Set("type", string(f.Type))
	}
	return values
}
