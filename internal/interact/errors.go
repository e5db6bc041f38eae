package interact

import (
	"fmt"
	"time"
)

// TimeoutError is an interaction that did not settle within Timeout.
type TimeoutError struct {
	Action  string
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s timed out after %dms: %v", e.Action, e.Timeout.Milliseconds(), e.Err)
	}
	return fmt.Sprintf("%s on '%s' timed out after %dms: %v", e.Action, e.Target, e.Timeout.Milliseconds(), e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ExhaustedError is a required interaction that failed on every permitted
// attempt. Err is the last attempt's error.
type ExhaustedError struct {
	Action   string
	Target   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s on '%s' failed after %d attempts: %v", e.Action, e.Target, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
