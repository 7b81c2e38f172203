package experiments

import "encoding/json"

// Variant is one branch of an experiment. Value holds the raw JSON
// preference value for pref studies.
type Variant struct {
	ID           int64
	ExperimentID int64
	IsControl    bool
	Name         string
	Slug         string
	Description  string
	Ratio        int
	Value        json.RawMessage
}

// ValueString renders Value for templates and bug bodies.
func (v Variant) ValueString() string {
	if len(v.Value) == 0 {
		return ""
	}
	return string(v.Value)
}
