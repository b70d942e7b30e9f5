package automation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// Scanner discovers employees newly eligible for each queue and enqueues at
// most one outstanding job per employee per queue. Safe to run repeatedly
// and concurrently with processing: enqueue is insert-unless-exists on the
// dedupe key, so duplicate attempts are silently skipped.
type Scanner struct {
	conf      *Config
	employees hrdb.EmployeeDB
	jobs      jobsdb.JobsDB
	log       zerolog.Logger
}

func NewScanner(conf *Config, employees hrdb.EmployeeDB, jobs jobsdb.JobsDB, log zerolog.Logger) *Scanner {
	return &Scanner{
		conf:      conf,
		employees: employees,
		jobs:      jobs,
		log:       log,
	}
}

// Scan runs both candidate scans and returns the number of jobs enqueued.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	identity, err := s.scanQueue(ctx, jobsdb.QueueIdentity, s.employees.IdentityCandidates)
	if err != nil {
		return identity, err
	}

	encryption, err := s.scanQueue(ctx, jobsdb.QueueEncryption, s.employees.EncryptionCandidates)
	if err != nil {
		return identity + encryption, err
	}

	return identity + encryption, nil
}

func (s *Scanner) scanQueue(ctx context.Context, queue jobsdb.Queue, candidates func(context.Context, int) ([]string, error)) (int, error) {
	employeeIDs, err := candidates(ctx, s.conf.ScanBatchSize)
	if err != nil {
		return 0, fmt.Errorf("scan %s candidates: %w", queue, err)
	}
	if len(employeeIDs) == 0 {
		return 0, nil
	}

	enqueued, err := s.jobs.Enqueue(ctx, queue, employeeIDs)
	if err != nil {
		return 0, err
	}

	if enqueued > 0 {
		s.log.Info().
			Str("queue", queue).
			Int("candidates", len(employeeIDs)).
			Int("enqueued", enqueued).
			Msg("candidate scan enqueued jobs")
	}

	return enqueued, nil
}
