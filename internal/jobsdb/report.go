package jobsdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

// ReportDB is the read-only side of the queue store, consumed by the ops
// reporter. Kept separate from JobsDB so processors never see it.
type ReportDB interface {
	StatusCounts(ctx context.Context, queue Queue) (map[Status]int, error)

	// OldestPending returns the creation time of the oldest PENDING job,
	// or nil when the queue has no pending jobs.
	OldestPending(ctx context.Context, queue Queue) (*time.Time, error)

	// CountDoneSince counts jobs finished within the trailing window.
	CountDoneSince(ctx context.Context, queue Queue, window time.Duration) (int, error)

	// CountErrorsSince counts jobs that reached a terminal error status
	// within the trailing window.
	CountErrorsSince(ctx context.Context, queue Queue, window time.Duration) (int, error)

	// CountReady counts PENDING jobs whose retry deadline has passed.
	CountReady(ctx context.Context, queue Queue) (int, error)

	// CountStuck counts PROCESSING jobs whose lease is older than
	// leaseTimeout, null leases included.
	CountStuck(ctx context.Context, queue Queue, leaseTimeout time.Duration) (int, error)

	List(ctx context.Context, filter ListFilter) ([]Job, error)
}

type ListFilter struct {
	Queue       Queue
	Status      *Status
	EmployeeID  string
	MinAttempts int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	LockedOnly  bool
	StuckOnly   bool

	// LeaseTimeout qualifies StuckOnly; ignored otherwise.
	LeaseTimeout time.Duration

	Limit  int
	Offset int
}

type reportDB struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewReport(db *bun.DB, clock clockwork.Clock) ReportDB {
	return &reportDB{
		db:    db,
		clock: clock,
	}
}

type statusCount struct {
	Status Status `bun:"status"`
	Count  int    `bun:"count"`
}

func (r *reportDB) StatusCounts(ctx context.Context, queue Queue) (map[Status]int, error) {
	var rows []statusCount
	err := r.db.NewSelect().
		Model((*Job)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Where("queue = ?", queue).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("status counts for %s: %w", queue, err)
	}

	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *reportDB) OldestPending(ctx context.Context, queue Queue) (*time.Time, error) {
	var oldest *time.Time
	err := r.db.NewSelect().
		Model((*Job)(nil)).
		ColumnExpr("min(created_at)").
		Where("queue = ?", queue).
		Where("status = ?", Pending).
		Scan(ctx, &oldest)
	if err != nil {
		return nil, fmt.Errorf("oldest pending for %s: %w", queue, err)
	}

	return oldest, nil
}

func (r *reportDB) CountDoneSince(ctx context.Context, queue Queue, window time.Duration) (int, error) {
	since := r.clock.Now().UTC().Add(-window)

	count, err := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("queue = ?", queue).
		Where("status = ?", Done).
		Where("updated_at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("done count for %s: %w", queue, err)
	}

	return count, nil
}

func (r *reportDB) CountErrorsSince(ctx context.Context, queue Queue, window time.Duration) (int, error) {
	since := r.clock.Now().UTC().Add(-window)

	count, err := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("queue = ?", queue).
		Where("status IN (?)", bun.In(ErrorStatuses)).
		Where("updated_at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("error count for %s: %w", queue, err)
	}

	return count, nil
}

func (r *reportDB) CountReady(ctx context.Context, queue Queue) (int, error) {
	now := r.clock.Now().UTC()

	count, err := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("queue = ?", queue).
		Where("status = ?", Pending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ready count for %s: %w", queue, err)
	}

	return count, nil
}

func (r *reportDB) CountStuck(ctx context.Context, queue Queue, leaseTimeout time.Duration) (int, error) {
	cutoff := r.clock.Now().UTC().Add(-leaseTimeout)

	count, err := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("queue = ?", queue).
		Where("status = ?", Processing).
		Where("locked_at IS NULL OR locked_at < ?", cutoff).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("stuck count for %s: %w", queue, err)
	}

	return count, nil
}

func (r *reportDB) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	q := r.db.NewSelect().
		Model((*Job)(nil)).
		Where("queue = ?", filter.Queue).
		Order("created_at")

	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.MinAttempts > 0 {
		q = q.Where("attempts >= ?", filter.MinAttempts)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", filter.CreatedTo.UTC())
	}
	if filter.LockedOnly {
		q = q.Where("locked_by IS NOT NULL")
	}
	if filter.StuckOnly {
		cutoff := r.clock.Now().UTC().Add(-filter.LeaseTimeout)
		q = q.Where("status = ?", Processing).
			Where("locked_at IS NULL OR locked_at < ?", cutoff)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var jobs []Job
	if err := q.Scan(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", filter.Queue, err)
	}

	return jobs, nil
}
