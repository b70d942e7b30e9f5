package automation

import (
	"errors"
	"fmt"

	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// TerminalError marks a processing failure that must not be retried. The
// wrapped status becomes the job's final state. Anything a processor
// returns that is not a TerminalError is treated as transient.
type TerminalError struct {
	Status jobsdb.Status
	Reason string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Reason)
}

func terminalf(status jobsdb.Status, format string, args ...any) error {
	return &TerminalError{
		Status: status,
		Reason: fmt.Sprintf(format, args...),
	}
}

// classify splits a processing error into its terminal status, or reports
// that it is transient.
func classify(err error) (jobsdb.Status, bool) {
	var te *TerminalError
	if errors.As(err, &te) {
		return te.Status, true
	}
	return "", false
}
