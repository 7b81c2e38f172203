package experiments

import (
	"sort"
	"strings"

	"experimenter/internal/services"
)

// FieldErrors maps form field names to their validation messages. It
// satisfies error and unwraps to services.ErrValidation.
type FieldErrors map[string][]string

// Add records msg against field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Has reports whether field has any error.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// First returns the first message for field, or "".
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(fe[field], "; "))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (fe FieldErrors) Unwrap() error { return services.ErrValidation }

// Err returns nil when no errors were recorded.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) merge(other FieldErrors) {
	for field, msgs := range other {
		fe[field] = append(fe[field], msgs...)
	}
}
