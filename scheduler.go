package automation

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

const (
	uninitialized = iota
	running
	stopped
)

// Scheduler is the single periodic driver: each tick runs reclaim, scan,
// one processing batch per queue, then the rate-limited housekeeping. All
// scheduling state lives on the instance, so independent schedulers can
// coexist in one process. Multiple process instances may run concurrently;
// cross-instance correctness rests on the store's atomic claim.
type Scheduler struct {
	conf     *Config
	jobs     jobsdb.JobsDB
	report   jobsdb.ReportDB
	scanner  *Scanner
	procs    []Processor
	clock    clockwork.Clock
	log      zerolog.Logger
	workerID string

	state    atomic.Uint32
	ticking  atomic.Bool
	shutdown chan struct{}

	backlogSchedule   cron.Schedule
	retentionSchedule cron.Schedule
	nextBacklogAt     time.Time
	nextRetentionAt   time.Time
}

func NewScheduler(
	conf *Config,
	jobs jobsdb.JobsDB,
	report jobsdb.ReportDB,
	scanner *Scanner,
	clock clockwork.Clock,
	log zerolog.Logger,
	procs ...Processor,
) (*Scheduler, error) {
	backlogSchedule, err := cron.ParseStandard(conf.BacklogLogSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse backlog schedule %q: %w", conf.BacklogLogSchedule, err)
	}
	retentionSchedule, err := cron.ParseStandard(conf.RetentionSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", conf.RetentionSchedule, err)
	}

	now := clock.Now()

	return &Scheduler{
		conf:              conf,
		jobs:              jobs,
		report:            report,
		scanner:           scanner,
		procs:             procs,
		clock:             clock,
		log:               log,
		workerID:          newWorkerID(),
		shutdown:          make(chan struct{}),
		backlogSchedule:   backlogSchedule,
		retentionSchedule: retentionSchedule,
		nextBacklogAt:     backlogSchedule.Next(now),
		nextRetentionAt:   retentionSchedule.Next(now),
	}, nil
}

// newWorkerID builds the lease holder identity. Unique per process so
// concurrent instances on one host stay distinguishable.
func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "/" + ulid.Make().String()
}

func (s *Scheduler) WorkerID() string {
	return s.workerID
}

// Start launches the tick loop. It may be called once per instance.
func (s *Scheduler) Start() error {
	if !s.state.CompareAndSwap(uninitialized, running) {
		return fmt.Errorf("scheduler already started")
	}

	go s.loop()

	return nil
}

func (s *Scheduler) Stop() {
	if s.state.CompareAndSwap(running, stopped) {
		close(s.shutdown)
	}
}

func (s *Scheduler) loop() {
	ticker := s.clock.NewTicker(s.conf.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.Chan():
			s.Tick(context.Background())
		}
	}
}

// Tick runs one full pass. Overlapping invocations are skipped rather than
// queued: the in-process flag serializes the tick against itself.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)

	if released, err := s.jobs.ReleaseStuck(ctx, s.conf.LeaseTimeout); err != nil {
		s.log.Error().Err(err).Msg("stuck job reclaim failed")
	} else if released > 0 {
		s.log.Warn().Int("released", released).Msg("reclaimed stuck jobs")
	}

	if _, err := s.scanner.Scan(ctx); err != nil {
		s.log.Error().Err(err).Msg("candidate scan failed")
	}

	for _, proc := range s.procs {
		s.processBatch(ctx, proc)
	}

	now := s.clock.Now()
	if !now.Before(s.nextBacklogAt) {
		s.logBacklogSnapshot(ctx)
		s.nextBacklogAt = s.backlogSchedule.Next(now)
	}
	if !now.Before(s.nextRetentionAt) {
		s.runRetention(ctx)
		s.nextRetentionAt = s.retentionSchedule.Next(now)
	}
}

// processBatch claims one batch for the processor and settles every claimed
// job. A single job's failure never aborts the batch.
func (s *Scheduler) processBatch(ctx context.Context, proc Processor) {
	claimed, err := s.jobs.ClaimPending(ctx, proc.Queue(), s.workerID, proc.BatchSize())
	if err != nil {
		s.log.Error().Err(err).Str("queue", proc.Queue()).Msg("claim failed")
		return
	}

	for _, job := range claimed {
		s.settle(ctx, proc, job)
	}
}

func (s *Scheduler) settle(ctx context.Context, proc Processor, job jobsdb.Job) {
	err := proc.Process(ctx, job)
	if err == nil {
		if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("mark done failed")
		}
		return
	}

	logEvent := s.log.Warn().
		Err(err).
		Str("queue", job.Queue).
		Str("job_id", job.ID).
		Str("employee_id", job.EmployeeID).
		Int("attempts", job.Attempts)

	if status, terminal := classify(err); terminal {
		logEvent.Str("status", status).Msg("job failed terminally")
		if err := s.jobs.MarkTerminal(ctx, job.ID, status, err.Error()); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("mark terminal failed")
		}
		return
	}

	// Transient. Attempts was already incremented at claim time.
	if job.Attempts >= s.conf.MaxAttempts {
		logEvent.Str("status", jobsdb.ErrorFatal).Msg("retries exhausted")
		msg := fmt.Sprintf("retries exhausted after %d attempts: %s", job.Attempts, err.Error())
		if err := s.jobs.MarkTerminal(ctx, job.ID, jobsdb.ErrorFatal, msg); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("mark terminal failed")
		}
		return
	}

	retryAt := s.clock.Now().UTC().Add(time.Duration(job.Attempts) * s.conf.RetryBackoffStep)
	logEvent.Time("next_retry_at", retryAt).Msg("job failed, retry scheduled")
	if err := s.jobs.ScheduleRetry(ctx, job.ID, retryAt, err.Error()); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("schedule retry failed")
	}
}

// RescanNow runs the candidate scan outside the tick cadence.
func (s *Scheduler) RescanNow(ctx context.Context) (int, error) {
	return s.scanner.Scan(ctx)
}

// ReleaseStuckNow runs the stuck-job reclaim outside the tick cadence.
func (s *Scheduler) ReleaseStuckNow(ctx context.Context) (int, error) {
	return s.jobs.ReleaseStuck(ctx, s.conf.LeaseTimeout)
}

func (s *Scheduler) logBacklogSnapshot(ctx context.Context) {
	for _, queue := range jobsdb.Queues {
		counts, err := s.report.StatusCounts(ctx, queue)
		if err != nil {
			s.log.Error().Err(err).Str("queue", queue).Msg("backlog snapshot failed")
			continue
		}

		event := s.log.Info().Str("queue", queue)
		for status, count := range counts {
			event = event.Int(status, count)
		}

		oldest, err := s.report.OldestPending(ctx, queue)
		if err == nil && oldest != nil {
			event = event.Dur("oldest_pending_age", s.clock.Now().UTC().Sub(*oldest))
		}

		event.Msg("queue backlog")
	}
}

func (s *Scheduler) runRetention(ctx context.Context) {
	purged, err := s.jobs.PurgeExpired(ctx, jobsdb.RetentionPolicy{
		DoneAge:       s.conf.RetentionDoneAge,
		ErrorAge:      s.conf.RetentionErrorAge,
		ProcessingAge: s.conf.RetentionProcessingAge,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("retention purge failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int("purged", purged).Msg("retention purge removed jobs")
	}
}
