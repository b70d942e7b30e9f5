package automation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

const (
	redactedEmail  = "[email]"
	redactedNumber = "[number]"

	redactedErrorMaxLen = 500
)

var (
	emailPattern      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	longNumberPattern = regexp.MustCompile(`[0-9]{8,}`)
)

// RedactError strips personal data from a job diagnostic before it reaches
// the operator surface: email-like substrings and long numeric identifiers
// are replaced with fixed placeholders and the result is bounded.
func RedactError(message string) string {
	redacted := emailPattern.ReplaceAllString(message, redactedEmail)
	redacted = longNumberPattern.ReplaceAllString(redacted, redactedNumber)
	return jobsdb.Truncate(redacted, redactedErrorMaxLen)
}

// Diagnose renders a short human-readable state summary for a job row.
func Diagnose(job jobsdb.Job, now time.Time, leaseTimeout time.Duration) string {
	switch {
	case job.Status == jobsdb.Pending && job.NextRetryAt != nil && job.NextRetryAt.After(now):
		return fmt.Sprintf("pending, retry %d scheduled in %s",
			job.Attempts+1, job.NextRetryAt.Sub(now).Round(time.Second))

	case job.Status == jobsdb.Pending:
		return "pending, ready to process"

	case job.Status == jobsdb.Processing && job.LockedAt == nil:
		return "processing without a lease timestamp, awaiting reclaim"

	case job.Status == jobsdb.Processing:
		age := now.Sub(*job.LockedAt).Round(time.Second)
		holder := "unknown worker"
		if job.LockedBy != nil {
			holder = *job.LockedBy
		}
		if age >= leaseTimeout {
			return fmt.Sprintf("processing, lease of %s expired %s ago, awaiting reclaim",
				holder, (age - leaseTimeout).Round(time.Second))
		}
		return fmt.Sprintf("processing, lease held by %s for %s", holder, age)

	case job.Status == jobsdb.Done:
		return fmt.Sprintf("done after %d attempt(s)", job.Attempts)

	default:
		return fmt.Sprintf("failed permanently (%s) after %d attempt(s), requeue manually once the cause is fixed",
			job.Status, job.Attempts)
	}
}
