package restore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnclassifiable means no restorable operation could be determined.
	ErrUnclassifiable = errors.New("no restorable operation")
	// ErrNoHandler means the classified operation has no registered handler.
	ErrNoHandler = errors.New("no handler for operation")
)

// Result reports the outcome of one restore. Error strings are surfaced
// verbatim to callers; internal paths and traces stay out of them.
type Result struct {
	OK      bool              `json:"ok"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func Failure(err error) Result {
	return Result{Error: err.Error()}
}

func Failuref(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

func Success(details map[string]string) Result {
	if details == nil {
		details = map[string]string{}
	}
	return Result{OK: true, Details: details}
}
