package experiments_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"experimenter/internal/experiments"
	"experimenter/internal/services"
)

func TestParseOrdering(t *testing.T) {
	if got, err := experiments.ParseOrdering(""); err != nil || got != experiments.DefaultOrdering {
		t.Fatalf("expected default ordering, got %q %v", got, err)
	}
	for _, choice := range experiments.OrderingChoices() {
		if got, err := experiments.ParseOrdering(string(choice.Value)); err != nil || got != choice.Value {
			t.Fatalf("ParseOrdering(%q) = %q, %v", choice.Value, got, err)
		}
	}
	if _, err := experiments.ParseOrdering("invalid ordering"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeFilterRoundTrip(t *testing.T) {
	values := url.Values{
		"archived":        {"on"},
		"project":         {"3"},
		"owner":           {"7"},
		"status":          {"draft"},
		"firefox_version": {"57.0"},
		"firefox_channel": {"Beta"},
		"type":            {"addon"},
	}
	filter, err := experiments.DecodeFilter(values)
	if err != nil {
		t.Fatalf("DecodeFilter returned error: %v", err)
	}
	want := experiments.Filter{
		Archived:       true,
		ProjectID:      3,
		OwnerID:        7,
		Status:         experiments.StatusDraft,
		FirefoxVersion: "57.0",
		FirefoxChannel: "Beta",
		Type:           experiments.TypeAddon,
	}
	if diff := cmp.Diff(want, filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	again, err := experiments.DecodeFilter(filter.Encode())
	if err != nil || again != filter {
		t.Fatalf("Encode did not round trip: %+v %v", again, err)
	}
}

func TestDecodeFilterRejectsBadChoices(t *testing.T) {
	_, err := experiments.DecodeFilter(url.Values{"status": {"Launched"}, "owner": {"abc"}, "firefox_channel": {"Aurora"}})
	var fieldErrs experiments.FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected field errors, got %v", err)
	}
	for _, field := range []string{"status", "owner", "firefox_channel"} {
		if !fieldErrs.Has(field) {
			t.Fatalf("expected error on %s, got %v", field, err)
		}
	}
}
