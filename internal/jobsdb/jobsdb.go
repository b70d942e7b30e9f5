package jobsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

const (
	noRowsAffected = 0

	// maxErrorLen bounds the diagnostic recorded on a job; anything longer
	// is useless for operators and bloats the row.
	maxErrorLen = 500
)

var ErrNoSuchJob = fmt.Errorf("jobsdb: no matching job in expected state")

// JobsDB is the durable queue store. Claiming is an atomic conditional
// transition: the status predicate and the row fetch happen in one
// statement, so racing workers get disjoint sets.
type JobsDB interface {
	// Enqueue inserts one pending job per employee unless the dedupe key
	// already exists in the queue. Conflicts are silently skipped; the
	// returned count is the number of rows actually inserted.
	Enqueue(ctx context.Context, queue Queue, employeeIDs []string) (int, error)

	// ClaimPending atomically moves up to limit ready pending jobs to
	// PROCESSING under the worker's lease and returns the post-claim rows,
	// oldest created first. Attempts is incremented as part of the claim.
	ClaimPending(ctx context.Context, queue Queue, workerID string, limit int) ([]Job, error)

	// ReleaseStuck returns PROCESSING jobs in both queues whose lease is
	// older than leaseTimeout (a null locked_at counts as immediately
	// stale) back to PENDING with the lease cleared.
	ReleaseStuck(ctx context.Context, leaseTimeout time.Duration) (int, error)

	// MarkDone finishes a PROCESSING job, clearing lease and retry fields.
	MarkDone(ctx context.Context, jobID string) error

	// MarkTerminal moves a PROCESSING job to a terminal error status.
	MarkTerminal(ctx context.Context, jobID string, status Status, lastError string) error

	// ScheduleRetry returns a PROCESSING job to PENDING with a retry
	// deadline and the lease cleared.
	ScheduleRetry(ctx context.Context, jobID string, nextRetryAt time.Time, lastError string) error

	// Requeue unconditionally resets a non-DONE job to PENDING, clearing
	// retry, lease and error fields. Operator recovery path for jobs in
	// terminal error states.
	Requeue(ctx context.Context, queue Queue, jobID string) error

	// PurgeExpired deletes terminal jobs past their retention age, plus
	// PROCESSING jobs stale beyond the policy's safety-net age.
	PurgeExpired(ctx context.Context, policy RetentionPolicy) (int, error)
}

type RetentionPolicy struct {
	DoneAge       time.Duration
	ErrorAge      time.Duration
	ProcessingAge time.Duration
}

type jobsDB struct {
	db    *bun.DB
	clock clockwork.Clock
}

func New(db *bun.DB, clock clockwork.Clock) JobsDB {
	return &jobsDB{
		db:    db,
		clock: clock,
	}
}

func (r *jobsDB) Enqueue(ctx context.Context, queue Queue, employeeIDs []string) (int, error) {
	if len(employeeIDs) == 0 {
		return 0, nil
	}

	now := r.clock.Now().UTC()
	jobs := make([]Job, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		jobs = append(jobs, Job{
			ID:         ulid.Make().String(),
			Queue:      queue,
			EmployeeID: employeeID,
			DedupeKey:  DedupeKey(queue, employeeID),
			Status:     Pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	res, err := r.db.NewInsert().
		Model(&jobs).
		On("CONFLICT (queue, dedupe_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s jobs: %w", queue, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(inserted), nil
}

func (r *jobsDB) ClaimPending(ctx context.Context, queue Queue, workerID string, limit int) ([]Job, error) {
	now := r.clock.Now().UTC()

	sub := r.db.NewSelect().
		Model((*Job)(nil)).
		Column("id").
		Where("queue = ?", queue).
		Where("status = ?", Pending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("created_at").
		Limit(limit).
		For("UPDATE SKIP LOCKED")

	var jobs []Job
	err := r.db.NewUpdate().
		TableExpr("hr_jobs AS j").
		TableExpr("(?) AS sub", sub).
		Set("status = ?", Processing).
		Set("attempts = j.attempts + 1").
		Set("locked_by = ?", workerID).
		Set("locked_at = ?", now).
		Set("last_error = NULL").
		Set("updated_at = ?", now).
		Where("sub.id = j.id").
		Returning("j.*").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("claim %s jobs: %w", queue, err)
	}

	return jobs, nil
}

func (r *jobsDB) ReleaseStuck(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	now := r.clock.Now().UTC()
	cutoff := now.Add(-leaseTimeout)

	res, err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", Pending).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("updated_at = ?", now).
		Where("status = ?", Processing).
		Where("locked_at IS NULL OR locked_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("release stuck jobs: %w", err)
	}

	released, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(released), nil
}

func (r *jobsDB) MarkDone(ctx context.Context, jobID string) error {
	now := r.clock.Now().UTC()

	res, err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", Done).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("next_retry_at = NULL").
		Set("last_error = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", jobID).
		Where("status = ?", Processing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark job %s done: %w", jobID, err)
	}

	return requireRows(res, jobID)
}

func (r *jobsDB) MarkTerminal(ctx context.Context, jobID string, status Status, lastError string) error {
	now := r.clock.Now().UTC()

	res, err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", status).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("next_retry_at = NULL").
		Set("last_error = ?", Truncate(lastError, maxErrorLen)).
		Set("updated_at = ?", now).
		Where("id = ?", jobID).
		Where("status = ?", Processing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", jobID, status, err)
	}

	return requireRows(res, jobID)
}

func (r *jobsDB) ScheduleRetry(ctx context.Context, jobID string, nextRetryAt time.Time, lastError string) error {
	now := r.clock.Now().UTC()

	res, err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", Pending).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("next_retry_at = ?", nextRetryAt.UTC()).
		Set("last_error = ?", Truncate(lastError, maxErrorLen)).
		Set("updated_at = ?", now).
		Where("id = ?", jobID).
		Where("status = ?", Processing).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("schedule retry for job %s: %w", jobID, err)
	}

	return requireRows(res, jobID)
}

func (r *jobsDB) Requeue(ctx context.Context, queue Queue, jobID string) error {
	now := r.clock.Now().UTC()

	res, err := r.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", Pending).
		Set("locked_by = NULL").
		Set("locked_at = NULL").
		Set("next_retry_at = NULL").
		Set("last_error = NULL").
		Set("updated_at = ?", now).
		Where("queue = ?", queue).
		Where("id = ?", jobID).
		Where("status != ?", Done).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", jobID, err)
	}

	return requireRows(res, jobID)
}

func (r *jobsDB) PurgeExpired(ctx context.Context, policy RetentionPolicy) (int, error) {
	now := r.clock.Now().UTC()

	res, err := r.db.NewDelete().
		Model((*Job)(nil)).
		WhereGroup(" OR ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("status = ?", Done).Where("updated_at < ?", now.Add(-policy.DoneAge))
		}).
		WhereGroup(" OR ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("status IN (?)", bun.In(ErrorStatuses)).Where("updated_at < ?", now.Add(-policy.ErrorAge))
		}).
		WhereGroup(" OR ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where("status = ?", Processing).Where("updated_at < ?", now.Add(-policy.ProcessingAge))
		}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired jobs: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(purged), nil
}

// Truncate bounds a diagnostic string to n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func requireRows(res sql.Result, jobID string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == noRowsAffected {
		return fmt.Errorf("%w: id %s", ErrNoSuchJob, jobID)
	}
	return nil
}
