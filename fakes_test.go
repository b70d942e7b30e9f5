package automation_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// In-memory stand-ins for the Postgres stores, mirroring their guarded
// transition semantics. Only scheduler/processor behavior is under test
// here; the SQL itself is covered by the dockertest suite in
// internal/jobsdb.

type fakeJobs struct {
	mu    sync.Mutex
	clock clockwork.Clock
	jobs  map[string]*jobsdb.Job
	seq   int
}

func newFakeJobs(clock clockwork.Clock) *fakeJobs {
	return &fakeJobs{
		clock: clock,
		jobs:  make(map[string]*jobsdb.Job),
	}
}

func (f *fakeJobs) Enqueue(ctx context.Context, queue jobsdb.Queue, employeeIDs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inserted := 0
	for _, employeeID := range employeeIDs {
		key := jobsdb.DedupeKey(queue, employeeID)
		if f.dedupeExistsLocked(queue, key) {
			continue
		}
		f.seq++
		now := f.clock.Now().UTC()
		id := fmt.Sprintf("job-%04d", f.seq)
		f.jobs[id] = &jobsdb.Job{
			ID:         id,
			Queue:      queue,
			EmployeeID: employeeID,
			DedupeKey:  key,
			Status:     jobsdb.Pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		inserted++
	}

	return inserted, nil
}

func (f *fakeJobs) dedupeExistsLocked(queue jobsdb.Queue, key string) bool {
	for _, j := range f.jobs {
		if j.Queue == queue && j.DedupeKey == key {
			return true
		}
	}
	return false
}

func (f *fakeJobs) ClaimPending(ctx context.Context, queue jobsdb.Queue, workerID string, limit int) ([]jobsdb.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now().UTC()
	var ready []*jobsdb.Job
	for _, j := range f.jobs {
		if j.Queue != queue || j.Status != jobsdb.Pending {
			continue
		}
		if j.NextRetryAt != nil && j.NextRetryAt.After(now) {
			continue
		}
		ready = append(ready, j)
	}
	sort.Slice(ready, func(i, k int) bool { return ready[i].ID < ready[k].ID })
	if len(ready) > limit {
		ready = ready[:limit]
	}

	claimed := make([]jobsdb.Job, 0, len(ready))
	for _, j := range ready {
		j.Status = jobsdb.Processing
		j.Attempts++
		worker := workerID
		j.LockedBy = &worker
		lockedAt := now
		j.LockedAt = &lockedAt
		j.LastError = nil
		j.UpdatedAt = now
		claimed = append(claimed, *j)
	}

	return claimed, nil
}

func (f *fakeJobs) ReleaseStuck(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.clock.Now().UTC().Add(-leaseTimeout)
	released := 0
	for _, j := range f.jobs {
		if j.Status != jobsdb.Processing {
			continue
		}
		if j.LockedAt != nil && !j.LockedAt.Before(cutoff) {
			continue
		}
		j.Status = jobsdb.Pending
		j.LockedBy = nil
		j.LockedAt = nil
		j.UpdatedAt = f.clock.Now().UTC()
		released++
	}

	return released, nil
}

func (f *fakeJobs) MarkDone(ctx context.Context, jobID string) error {
	return f.transition(jobID, func(j *jobsdb.Job) {
		j.Status = jobsdb.Done
		j.LockedBy = nil
		j.LockedAt = nil
		j.NextRetryAt = nil
		j.LastError = nil
	})
}

func (f *fakeJobs) MarkTerminal(ctx context.Context, jobID string, status jobsdb.Status, lastError string) error {
	return f.transition(jobID, func(j *jobsdb.Job) {
		j.Status = status
		j.LockedBy = nil
		j.LockedAt = nil
		j.NextRetryAt = nil
		msg := jobsdb.Truncate(lastError, 500)
		j.LastError = &msg
	})
}

func (f *fakeJobs) ScheduleRetry(ctx context.Context, jobID string, nextRetryAt time.Time, lastError string) error {
	return f.transition(jobID, func(j *jobsdb.Job) {
		j.Status = jobsdb.Pending
		j.LockedBy = nil
		j.LockedAt = nil
		retryAt := nextRetryAt.UTC()
		j.NextRetryAt = &retryAt
		msg := jobsdb.Truncate(lastError, 500)
		j.LastError = &msg
	})
}

func (f *fakeJobs) transition(jobID string, mutate func(*jobsdb.Job)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok || j.Status != jobsdb.Processing {
		return fmt.Errorf("%w: id %s", jobsdb.ErrNoSuchJob, jobID)
	}
	mutate(j)
	j.UpdatedAt = f.clock.Now().UTC()

	return nil
}

func (f *fakeJobs) Requeue(ctx context.Context, queue jobsdb.Queue, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok || j.Queue != queue || j.Status == jobsdb.Done {
		return fmt.Errorf("%w: id %s", jobsdb.ErrNoSuchJob, jobID)
	}
	j.Status = jobsdb.Pending
	j.LockedBy = nil
	j.LockedAt = nil
	j.NextRetryAt = nil
	j.LastError = nil
	j.UpdatedAt = f.clock.Now().UTC()

	return nil
}

func (f *fakeJobs) PurgeExpired(ctx context.Context, policy jobsdb.RetentionPolicy) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now().UTC()
	purged := 0
	for id, j := range f.jobs {
		expired := false
		switch {
		case j.Status == jobsdb.Done:
			expired = j.UpdatedAt.Before(now.Add(-policy.DoneAge))
		case j.Status == jobsdb.Processing:
			expired = j.UpdatedAt.Before(now.Add(-policy.ProcessingAge))
		case jobsdb.IsTerminal(j.Status):
			expired = j.UpdatedAt.Before(now.Add(-policy.ErrorAge))
		}
		if expired {
			delete(f.jobs, id)
			purged++
		}
	}

	return purged, nil
}

// Test-side accessors.

func (f *fakeJobs) get(jobID string) jobsdb.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[jobID]
}

func (f *fakeJobs) byQueue(queue jobsdb.Queue) []jobsdb.Job {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []jobsdb.Job
	for _, j := range f.jobs {
		if j.Queue == queue {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })

	return out
}

func (f *fakeJobs) put(j jobsdb.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := j
	f.jobs[j.ID] = &copied
}

func (f *fakeJobs) hasNonTerminal(queue jobsdb.Queue, employeeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, j := range f.jobs {
		if j.Queue == queue && j.EmployeeID == employeeID &&
			(j.Status == jobsdb.Pending || j.Status == jobsdb.Processing) {
			return true
		}
	}
	return false
}

type fakeEmployees struct {
	mu         sync.Mutex
	jobs       *fakeJobs
	employees  map[string]*hrdb.Employee
	provisions map[string][]*hrdb.AccrualProvision
}

func newFakeEmployees(jobs *fakeJobs) *fakeEmployees {
	return &fakeEmployees{
		jobs:       jobs,
		employees:  make(map[string]*hrdb.Employee),
		provisions: make(map[string][]*hrdb.AccrualProvision),
	}
}

func (f *fakeEmployees) put(e hrdb.Employee) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := e
	f.employees[e.ID] = &copied
}

func (f *fakeEmployees) addProvision(p hrdb.AccrualProvision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := p
	f.provisions[p.EmployeeID] = append(f.provisions[p.EmployeeID], &copied)
}

func (f *fakeEmployees) Get(ctx context.Context, id string) (*hrdb.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", hrdb.ErrNotFound, id)
	}
	copied := *e

	return &copied, nil
}

func (f *fakeEmployees) LinkUserAccount(ctx context.Context, employeeID, userAccountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.employees[employeeID]
	if !ok {
		return fmt.Errorf("%w: employee %s", hrdb.ErrNotFound, employeeID)
	}
	id := userAccountID
	e.UserAccountID = &id

	return nil
}

func (f *fakeEmployees) SaveEncrypted(ctx context.Context, e *hrdb.Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.employees[e.ID]; !ok {
		return fmt.Errorf("%w: employee %s", hrdb.ErrNotFound, e.ID)
	}
	copied := *e
	f.employees[e.ID] = &copied

	return nil
}

func (f *fakeEmployees) IdentityCandidates(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for _, e := range f.employees {
		if !e.Active || e.UserAccountID != nil {
			continue
		}
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	return f.withoutOutstanding(jobsdb.QueueIdentity, ids, limit), nil
}

func (f *fakeEmployees) EncryptionCandidates(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for _, e := range f.employees {
		if e.DataEncrypted {
			continue
		}
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	return f.withoutOutstanding(jobsdb.QueueEncryption, ids, limit), nil
}

func (f *fakeEmployees) withoutOutstanding(queue jobsdb.Queue, ids []string, limit int) []string {
	var out []string
	for _, id := range ids {
		if f.jobs.hasNonTerminal(queue, id) {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f *fakeEmployees) CountMissingAccount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.employees {
		if e.Active && e.UserAccountID == nil {
			count++
		}
	}

	return count, nil
}

func (f *fakeEmployees) CountUnencrypted(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.employees {
		if e.Active && !e.DataEncrypted {
			count++
		}
	}

	return count, nil
}

func (f *fakeEmployees) CountPlaintextLeaks(ctx context.Context, marker string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.employees {
		if !e.DataEncrypted {
			continue
		}
		for _, field := range e.PII() {
			if *field != "" && !strings.HasPrefix(*field, marker) {
				count++
				break
			}
		}
	}

	return count, nil
}

func (f *fakeEmployees) ProvisionsByEmployee(ctx context.Context, employeeID string) ([]hrdb.AccrualProvision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []hrdb.AccrualProvision
	for _, p := range f.provisions[employeeID] {
		out = append(out, *p)
	}

	return out, nil
}

func (f *fakeEmployees) UpdateProvisionAmount(ctx context.Context, provisionID, amount string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, provisions := range f.provisions {
		for _, p := range provisions {
			if p.ID == provisionID {
				p.Amount = amount
				return nil
			}
		}
	}

	return fmt.Errorf("%w: provision %s", hrdb.ErrNotFound, provisionID)
}

type fakeIdentity struct {
	mu        sync.Mutex
	employees *fakeEmployees
	users     map[string]*hrdb.UserAccount

	companyMemberships map[string]bool
	appMemberships     map[string]bool
	roleAssignments    map[string]bool
}

func newFakeIdentity(employees *fakeEmployees) *fakeIdentity {
	return &fakeIdentity{
		employees:          employees,
		users:              make(map[string]*hrdb.UserAccount),
		companyMemberships: make(map[string]bool),
		appMemberships:     make(map[string]bool),
		roleAssignments:    make(map[string]bool),
	}
}

func (f *fakeIdentity) putUser(u hrdb.UserAccount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := u
	f.users[hrdb.NormalizeEmail(u.Email)] = &copied
}

func (f *fakeIdentity) FindUserByEmail(ctx context.Context, email string) (*hrdb.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[hrdb.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("%w: user account", hrdb.ErrNotFound)
	}
	copied := *u

	return &copied, nil
}

func (f *fakeIdentity) CreateUser(ctx context.Context, firstName, lastName, email string) (*hrdb.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := hrdb.NormalizeEmail(email)
	u := &hrdb.UserAccount{
		ID:        "user-" + normalized,
		Email:     normalized,
		FirstName: firstName,
		LastName:  lastName,
		Active:    true,
	}
	f.users[normalized] = u
	copied := *u

	return &copied, nil
}

func (f *fakeIdentity) LinkedEmployee(ctx context.Context, userAccountID, excludeEmployeeID string) (*hrdb.Employee, error) {
	f.employees.mu.Lock()
	defer f.employees.mu.Unlock()

	for _, e := range f.employees.employees {
		if e.ID == excludeEmployeeID || e.UserAccountID == nil || *e.UserAccountID != userAccountID {
			continue
		}
		copied := *e
		return &copied, nil
	}

	return nil, fmt.Errorf("%w: no employee linked to account %s", hrdb.ErrNotFound, userAccountID)
}

func (f *fakeIdentity) EnsureCompanyMembership(ctx context.Context, userAccountID, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.companyMemberships[userAccountID+"|"+companyID] = true
	return nil
}

func (f *fakeIdentity) EnsureApplicationMembership(ctx context.Context, userAccountID, applicationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appMemberships[userAccountID+"|"+applicationID] = true
	return nil
}

func (f *fakeIdentity) EnsureRoleAssignment(ctx context.Context, userAccountID, roleID, companyID, applicationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleAssignments[userAccountID+"|"+roleID+"|"+companyID+"|"+applicationID] = true
	return nil
}

type fakeDirectory struct {
	app  *hrdb.Application
	role *hrdb.ApplicationRole
}

func (f *fakeDirectory) ResolveApplication(ctx context.Context, code string) (*hrdb.Application, error) {
	if f.app == nil || f.app.Code != code {
		return nil, fmt.Errorf("%w: application %s", hrdb.ErrNotFound, code)
	}
	copied := *f.app
	return &copied, nil
}

func (f *fakeDirectory) DefaultEmployeeRole(ctx context.Context, applicationID string) (*hrdb.ApplicationRole, error) {
	if f.role == nil || f.role.ApplicationID != applicationID {
		return nil, fmt.Errorf("%w: default employee role", hrdb.ErrNotFound)
	}
	copied := *f.role
	return &copied, nil
}

// plainCodec marks "ciphertext" with a readable prefix so assertions stay
// legible.
type plainCodec struct{}

func (plainCodec) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (plainCodec) Decrypt(value string) (string, error) {
	return strings.TrimPrefix(value, "enc:"), nil
}

func (plainCodec) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, "enc:")
}

func (plainCodec) Hash(value string) string {
	return "hash:" + strings.ToLower(strings.TrimSpace(value))
}

func (plainCodec) SchemeVersion() string {
	return "test"
}

type fakeReport struct {
	jobs *fakeJobs
}

func (f *fakeReport) StatusCounts(ctx context.Context, queue jobsdb.Queue) (map[jobsdb.Status]int, error) {
	counts := make(map[jobsdb.Status]int)
	for _, j := range f.jobs.byQueue(queue) {
		counts[j.Status]++
	}
	return counts, nil
}

func (f *fakeReport) OldestPending(ctx context.Context, queue jobsdb.Queue) (*time.Time, error) {
	var oldest *time.Time
	for _, j := range f.jobs.byQueue(queue) {
		if j.Status != jobsdb.Pending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(*oldest) {
			created := j.CreatedAt
			oldest = &created
		}
	}
	return oldest, nil
}

func (f *fakeReport) CountDoneSince(ctx context.Context, queue jobsdb.Queue, window time.Duration) (int, error) {
	since := f.jobs.clock.Now().UTC().Add(-window)
	count := 0
	for _, j := range f.jobs.byQueue(queue) {
		if j.Status == jobsdb.Done && !j.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeReport) CountErrorsSince(ctx context.Context, queue jobsdb.Queue, window time.Duration) (int, error) {
	since := f.jobs.clock.Now().UTC().Add(-window)
	count := 0
	for _, j := range f.jobs.byQueue(queue) {
		if j.Status != jobsdb.Done && jobsdb.IsTerminal(j.Status) && !j.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeReport) CountReady(ctx context.Context, queue jobsdb.Queue) (int, error) {
	now := f.jobs.clock.Now().UTC()
	count := 0
	for _, j := range f.jobs.byQueue(queue) {
		if j.Status != jobsdb.Pending {
			continue
		}
		if j.NextRetryAt != nil && j.NextRetryAt.After(now) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeReport) CountStuck(ctx context.Context, queue jobsdb.Queue, leaseTimeout time.Duration) (int, error) {
	cutoff := f.jobs.clock.Now().UTC().Add(-leaseTimeout)
	count := 0
	for _, j := range f.jobs.byQueue(queue) {
		if j.Status != jobsdb.Processing {
			continue
		}
		if j.LockedAt == nil || j.LockedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (f *fakeReport) List(ctx context.Context, filter jobsdb.ListFilter) ([]jobsdb.Job, error) {
	cutoff := f.jobs.clock.Now().UTC().Add(-filter.LeaseTimeout)
	var out []jobsdb.Job
	for _, j := range f.jobs.byQueue(filter.Queue) {
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.EmployeeID != "" && j.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.MinAttempts > 0 && j.Attempts < filter.MinAttempts {
			continue
		}
		if filter.LockedOnly && j.LockedBy == nil {
			continue
		}
		if filter.StuckOnly {
			if j.Status != jobsdb.Processing {
				continue
			}
			if j.LockedAt != nil && !j.LockedAt.Before(cutoff) {
				continue
			}
		}
		out = append(out, j)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
