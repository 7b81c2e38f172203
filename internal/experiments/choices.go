package experiments

import "fmt"

// Type distinguishes preference flips from add-on studies.
type Type string

const (
	TypePref  Type = "pref"
	TypeAddon Type = "addon"
)

const (
	ChannelNightly = "Nightly"
	ChannelBeta    = "Beta"
	ChannelRelease = "Release"
)

const (
	PrefTypeBool   = "boolean"
	PrefTypeInt    = "integer"
	PrefTypeString = "string"
	PrefTypeJSON   = "json string"

	PrefBranchDefault = "default"
	PrefBranchUser    = "user"
)

// Section names anchor comments on the detail page.
const (
	SectionOverview   = "overview"
	SectionPopulation = "population"
	SectionAddon      = "addon"
	SectionPref       = "pref"
	SectionBranches   = "branches"
	SectionObjectives = "objectives"
	SectionAnalysis   = "analysis"
	SectionRisks      = "risks"
	SectionTesting    = "testing"
)

var (
	Types        = []Type{TypePref, TypeAddon}
	Channels     = []string{ChannelNightly, ChannelBeta, ChannelRelease}
	PrefTypes    = []string{PrefTypeBool, PrefTypeInt, PrefTypeString, PrefTypeJSON}
	PrefBranches = []string{PrefBranchDefault, PrefBranchUser}
	Sections     = []string{
		SectionOverview, SectionPopulation, SectionAddon, SectionPref, SectionBranches,
		SectionObjectives, SectionAnalysis, SectionRisks, SectionTesting,
	}
	Versions = func() []string {
		out := make([]string, 0, 16)
		for v := 55; v <= 70; v++ {
			out = append(out, fmt.Sprintf("%d.0", v))
		}
		return out
	}()
)

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ValidType reports whether t is a known experiment type.
func ValidType(t Type) bool { return contains(Types, t) }

// ValidSection reports whether s names a commentable section.
func ValidSection(s string) bool { return contains(Sections, s) }
