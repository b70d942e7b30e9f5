package automation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	automation "github.com/nominahr/pg-hr-automation"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

func TestRedactError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "email replaced",
			in:   "user rosa.martinez@example.com already exists",
			want: "user [email] already exists",
		},
		{
			name: "long number replaced",
			in:   "employee 123456789 not found",
			want: "employee [number] not found",
		},
		{
			name: "short number kept",
			in:   "attempt 3 of 5 failed",
			want: "attempt 3 of 5 failed",
		},
		{
			name: "mixed",
			in:   "duplicate of a@b.es with national id 44556677889",
			want: "duplicate of [email] with national id [number]",
		},
		{
			name: "plain message untouched",
			in:   "application timewise is inactive",
			want: "application timewise is inactive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, automation.RedactError(tt.in))
		})
	}
}

func TestRedactErrorBoundsLength(t *testing.T) {
	long := strings.Repeat("x", 2000)
	assert.Len(t, automation.RedactError(long), 500)
}

func TestDiagnose(t *testing.T) {
	now := testStart
	worker := "host/worker"
	leaseTimeout := 10 * time.Minute

	retryAt := now.Add(90 * time.Second)
	heldAt := now.Add(-3 * time.Minute)
	expiredAt := now.Add(-25 * time.Minute)

	tests := []struct {
		name string
		job  jobsdb.Job
		want string
	}{
		{
			name: "pending with future retry",
			job:  jobsdb.Job{Status: jobsdb.Pending, Attempts: 1, NextRetryAt: &retryAt},
			want: "pending, retry 2 scheduled in 1m30s",
		},
		{
			name: "pending ready",
			job:  jobsdb.Job{Status: jobsdb.Pending},
			want: "pending, ready to process",
		},
		{
			name: "processing without lease",
			job:  jobsdb.Job{Status: jobsdb.Processing, Attempts: 1},
			want: "processing without a lease timestamp, awaiting reclaim",
		},
		{
			name: "processing with live lease",
			job:  jobsdb.Job{Status: jobsdb.Processing, Attempts: 1, LockedBy: &worker, LockedAt: &heldAt},
			want: "processing, lease held by host/worker for 3m0s",
		},
		{
			name: "processing with expired lease",
			job:  jobsdb.Job{Status: jobsdb.Processing, Attempts: 2, LockedBy: &worker, LockedAt: &expiredAt},
			want: "processing, lease of host/worker expired 15m0s ago, awaiting reclaim",
		},
		{
			name: "done",
			job:  jobsdb.Job{Status: jobsdb.Done, Attempts: 2},
			want: "done after 2 attempt(s)",
		},
		{
			name: "terminal error",
			job:  jobsdb.Job{Status: jobsdb.ErrorDuplicate, Attempts: 1},
			want: "failed permanently (ERROR_DUPLICATE) after 1 attempt(s), requeue manually once the cause is fixed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, automation.Diagnose(tt.job, now, leaseTimeout))
		})
	}
}
