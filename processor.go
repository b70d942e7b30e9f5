package automation

import (
	"context"

	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// Processor is the per-queue processing strategy. Both queues share the
// same claim/ack machinery in the scheduler; only the work differs.
//
// Process returns nil on success (including no-op success), a
// *TerminalError for classified business failures, and any other error for
// transient conditions the scheduler should retry with backoff.
type Processor interface {
	Queue() jobsdb.Queue
	BatchSize() int
	Process(ctx context.Context, job jobsdb.Job) error
}
