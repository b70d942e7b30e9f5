package jobsdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Queue = string

const (
	QueueIdentity   Queue = "identity"
	QueueEncryption Queue = "encryption"
)

var Queues = []Queue{QueueIdentity, QueueEncryption}

type Status = string

const (
	Pending        Status = "PENDING"
	Processing     Status = "PROCESSING"
	Done           Status = "DONE"
	ErrorConfig    Status = "ERROR_CONFIG"
	ErrorDuplicate Status = "ERROR_DUPLICATE"
	ErrorPerm      Status = "ERROR_PERM"
	ErrorFatal     Status = "ERROR_FATAL"
)

var ErrorStatuses = []Status{ErrorConfig, ErrorDuplicate, ErrorPerm, ErrorFatal}

func IsTerminal(s Status) bool {
	if s == Done {
		return true
	}
	for _, e := range ErrorStatuses {
		if s == e {
			return true
		}
	}
	return false
}

// Job is one durable queue entry. The same shape serves both queues;
// (queue, dedupe_key) is unique so an employee can have at most one row
// per queue at any time.
type Job struct {
	bun.BaseModel `bun:"table:hr_jobs"`

	ID          string     `bun:"id,pk"`
	Queue       Queue      `bun:"queue,notnull"`
	EmployeeID  string     `bun:"employee_id,notnull"`
	DedupeKey   string     `bun:"dedupe_key,notnull"`
	Status      Status     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull"`
	NextRetryAt *time.Time `bun:"next_retry_at"`
	LockedBy    *string    `bun:"locked_by"`
	LockedAt    *time.Time `bun:"locked_at"`
	LastError   *string    `bun:"last_error"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func (j *Job) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now().UTC()
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		if j.UpdatedAt.IsZero() {
			j.UpdatedAt = now
		}
	}
	return nil
}

// DedupeKey builds the canonical per-queue deduplication key.
func DedupeKey(queue Queue, employeeID string) string {
	return queue + ":" + employeeID
}
