package bugzilla

import (
	"fmt"

	"experimenter/internal/services"
)

// InvalidUserCode is the Bugzilla error code for an unknown assignee.
const InvalidUserCode = 51

// Error describes a failed Bugzilla call.
type Error struct {
	Op         string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("bugzilla %s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("bugzilla %s: code %d: %s", e.Op, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("bugzilla %s: http %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("bugzilla %s: %s", e.Op, e.Message)
	}
}

// Unwrap exposes the classification marker alongside the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrExternal}
	}
	return []error{services.ErrExternal, e.Err}
}
