package automation

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// Reporter is the read-only operator surface plus the manual recovery
// actions. It runs outside the scheduler's tick; everything it reads is a
// point-in-time snapshot.
type Reporter struct {
	conf      *Config
	report    jobsdb.ReportDB
	jobs      jobsdb.JobsDB
	employees hrdb.EmployeeDB
	sched     *Scheduler
	clock     clockwork.Clock
}

func NewReporter(
	conf *Config,
	report jobsdb.ReportDB,
	jobs jobsdb.JobsDB,
	employees hrdb.EmployeeDB,
	sched *Scheduler,
	clock clockwork.Clock,
) *Reporter {
	return &Reporter{
		conf:      conf,
		report:    report,
		jobs:      jobs,
		employees: employees,
		sched:     sched,
		clock:     clock,
	}
}

type QueueSummary struct {
	StatusCounts         map[jobsdb.Status]int `json:"status_counts"`
	OldestPendingMinutes *int                  `json:"oldest_pending_minutes"`
	DonePerMinute5       float64               `json:"done_per_minute_5m"`
	DonePerMinute15      float64               `json:"done_per_minute_15m"`
	ErrorsLast15Minutes  int                   `json:"errors_last_15m"`
	StuckProcessing      int                   `json:"stuck_processing"`
}

type Summary struct {
	Queues                  map[jobsdb.Queue]QueueSummary `json:"queues"`
	EmployeesWithoutAccount int                           `json:"employees_without_account"`
	EmployeesUnencrypted    int                           `json:"employees_unencrypted"`
	PlaintextLeaks          int                           `json:"plaintext_leaks"`
	GeneratedAt             time.Time                     `json:"generated_at"`
}

func (r *Reporter) Summary(ctx context.Context) (*Summary, error) {
	now := r.clock.Now().UTC()
	summary := &Summary{
		Queues:      make(map[jobsdb.Queue]QueueSummary, len(jobsdb.Queues)),
		GeneratedAt: now,
	}

	for _, queue := range jobsdb.Queues {
		qs, err := r.queueSummary(ctx, queue, now)
		if err != nil {
			return nil, err
		}
		summary.Queues[queue] = qs
	}

	var err error
	if summary.EmployeesWithoutAccount, err = r.employees.CountMissingAccount(ctx); err != nil {
		return nil, err
	}
	if summary.EmployeesUnencrypted, err = r.employees.CountUnencrypted(ctx); err != nil {
		return nil, err
	}
	if summary.PlaintextLeaks, err = r.employees.CountPlaintextLeaks(ctx, r.conf.EncryptedMarker); err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *Reporter) queueSummary(ctx context.Context, queue jobsdb.Queue, now time.Time) (QueueSummary, error) {
	qs := QueueSummary{}

	var err error
	if qs.StatusCounts, err = r.report.StatusCounts(ctx, queue); err != nil {
		return qs, err
	}

	oldest, err := r.report.OldestPending(ctx, queue)
	if err != nil {
		return qs, err
	}
	if oldest != nil {
		minutes := int(now.Sub(*oldest) / time.Minute)
		qs.OldestPendingMinutes = &minutes
	}

	done5, err := r.report.CountDoneSince(ctx, queue, 5*time.Minute)
	if err != nil {
		return qs, err
	}
	qs.DonePerMinute5 = float64(done5) / 5

	done15, err := r.report.CountDoneSince(ctx, queue, 15*time.Minute)
	if err != nil {
		return qs, err
	}
	qs.DonePerMinute15 = float64(done15) / 15

	if qs.ErrorsLast15Minutes, err = r.report.CountErrorsSince(ctx, queue, 15*time.Minute); err != nil {
		return qs, err
	}
	if qs.StuckProcessing, err = r.report.CountStuck(ctx, queue, r.conf.LeaseTimeout); err != nil {
		return qs, err
	}

	return qs, nil
}

// JobView is one row of the operator job listing. The error message is
// redacted; Diagnostic is derived from the status, lease and retry fields.
type JobView struct {
	jobsdb.Job

	RedactedError string `json:"redacted_error"`
	Diagnostic    string `json:"diagnostic"`
}

func (r *Reporter) ListJobs(ctx context.Context, filter jobsdb.ListFilter) ([]JobView, error) {
	if filter.StuckOnly {
		filter.LeaseTimeout = r.conf.LeaseTimeout
	}

	jobs, err := r.report.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		view := JobView{
			Job:        job,
			Diagnostic: Diagnose(job, now, r.conf.LeaseTimeout),
		}
		if job.LastError != nil {
			view.RedactedError = RedactError(*job.LastError)
		}
		views = append(views, view)
	}

	return views, nil
}

type QueueHealth struct {
	Ready int `json:"ready"`
	Stuck int `json:"stuck"`
}

type Health struct {
	Queues  map[jobsdb.Queue]QueueHealth `json:"queues"`
	Healthy bool                         `json:"healthy"`
}

// Health reports per-queue readiness; healthy iff no queue has stuck jobs.
func (r *Reporter) Health(ctx context.Context) (*Health, error) {
	health := &Health{
		Queues:  make(map[jobsdb.Queue]QueueHealth, len(jobsdb.Queues)),
		Healthy: true,
	}

	for _, queue := range jobsdb.Queues {
		ready, err := r.report.CountReady(ctx, queue)
		if err != nil {
			return nil, err
		}
		stuck, err := r.report.CountStuck(ctx, queue, r.conf.LeaseTimeout)
		if err != nil {
			return nil, err
		}

		health.Queues[queue] = QueueHealth{Ready: ready, Stuck: stuck}
		if stuck > 0 {
			health.Healthy = false
		}
	}

	return health, nil
}

// RescanNow triggers the candidate scan outside the tick cadence.
func (r *Reporter) RescanNow(ctx context.Context) (int, error) {
	return r.sched.RescanNow(ctx)
}

// ReleaseStuckNow triggers the stuck-job reclaim outside the tick cadence.
func (r *Reporter) ReleaseStuckNow(ctx context.Context) (int, error) {
	return r.sched.ReleaseStuckNow(ctx)
}

// Requeue resets a non-DONE job to PENDING regardless of its current
// status. The operator recovery path for terminal error states once the
// underlying condition is fixed.
func (r *Reporter) Requeue(ctx context.Context, queue jobsdb.Queue, jobID string) error {
	return r.jobs.Requeue(ctx, queue, jobID)
}
