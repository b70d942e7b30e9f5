package hrdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("hrdb: not found")

// EmployeeDB exposes the slice of the HR schema the automation worker is
// allowed to read and mutate: the identity link, the encryption state, the
// PII columns themselves, and the candidate scans feeding both queues.
type EmployeeDB interface {
	Get(ctx context.Context, id string) (*Employee, error)

	// LinkUserAccount sets the employee's platform identity link.
	LinkUserAccount(ctx context.Context, employeeID, userAccountID string) error

	// SaveEncrypted persists the PII columns, lookup hashes and encryption
	// state of an employee after an encryption pass.
	SaveEncrypted(ctx context.Context, e *Employee) error

	// IdentityCandidates returns ids of active employees with no linked
	// user account and no outstanding identity job, oldest first.
	IdentityCandidates(ctx context.Context, limit int) ([]string, error)

	// EncryptionCandidates returns ids of employees not yet flagged
	// encrypted and with no outstanding encryption job.
	EncryptionCandidates(ctx context.Context, limit int) ([]string, error)

	CountMissingAccount(ctx context.Context) (int, error)
	CountUnencrypted(ctx context.Context) (int, error)

	// CountPlaintextLeaks counts employees flagged encrypted that still
	// carry at least one PII column without the ciphertext marker.
	CountPlaintextLeaks(ctx context.Context, marker string) (int, error)

	ProvisionsByEmployee(ctx context.Context, employeeID string) ([]AccrualProvision, error)
	UpdateProvisionAmount(ctx context.Context, provisionID, amount string) error
}

type employeeDB struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewEmployees(db *bun.DB, clock clockwork.Clock) EmployeeDB {
	return &employeeDB{
		db:    db,
		clock: clock,
	}
}

func (r *employeeDB) Get(ctx context.Context, id string) (*Employee, error) {
	e := new(Employee)
	err := r.db.NewSelect().
		Model(e).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: employee %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get employee %s: %w", id, err)
	}

	return e, nil
}

func (r *employeeDB) LinkUserAccount(ctx context.Context, employeeID, userAccountID string) error {
	res, err := r.db.NewUpdate().
		Model((*Employee)(nil)).
		Set("user_account_id = ?", userAccountID).
		Set("updated_at = ?", r.clock.Now().UTC()).
		Where("id = ?", employeeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("link employee %s to account %s: %w", employeeID, userAccountID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: employee %s", ErrNotFound, employeeID)
	}

	return nil
}

func (r *employeeDB) SaveEncrypted(ctx context.Context, e *Employee) error {
	e.UpdatedAt = r.clock.Now().UTC()

	res, err := r.db.NewUpdate().
		Model(e).
		Column(
			"first_name", "last_name_1", "last_name_2",
			"national_id", "email", "phone", "address",
			"base_salary", "bonus_salary",
			"national_id_hash", "email_hash",
			"data_encrypted", "encryption_version", "encrypted_at",
			"updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save encrypted employee %s: %w", e.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: employee %s", ErrNotFound, e.ID)
	}

	return nil
}

// Candidate scans join against hr_jobs directly; both tables live in the
// same database and the unique (queue, dedupe_key) index remains the safety
// net if a job lands between the scan and the enqueue.

func (r *employeeDB) IdentityCandidates(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*Employee)(nil)).
		Column("id").
		Where("active = TRUE").
		Where("user_account_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM hr_jobs j WHERE j.queue = 'identity' AND j.employee_id = employees.id AND j.status IN ('PENDING', 'PROCESSING'))").
		Order("created_at").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("identity candidates: %w", err)
	}

	return ids, nil
}

func (r *employeeDB) EncryptionCandidates(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*Employee)(nil)).
		Column("id").
		Where("data_encrypted = FALSE").
		Where("NOT EXISTS (SELECT 1 FROM hr_jobs j WHERE j.queue = 'encryption' AND j.employee_id = employees.id AND j.status IN ('PENDING', 'PROCESSING'))").
		Order("created_at").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("encryption candidates: %w", err)
	}

	return ids, nil
}

func (r *employeeDB) CountMissingAccount(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Employee)(nil)).
		Where("active = TRUE").
		Where("user_account_id IS NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count employees without account: %w", err)
	}

	return count, nil
}

func (r *employeeDB) CountUnencrypted(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*Employee)(nil)).
		Where("active = TRUE").
		Where("data_encrypted = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unencrypted employees: %w", err)
	}

	return count, nil
}

func (r *employeeDB) CountPlaintextLeaks(ctx context.Context, marker string) (int, error) {
	pattern := marker + "%"
	piiColumns := []string{
		"first_name", "last_name_1", "last_name_2",
		"national_id", "email", "phone", "address",
		"base_salary", "bonus_salary",
	}

	q := r.db.NewSelect().
		Model((*Employee)(nil)).
		Where("data_encrypted = TRUE")
	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range piiColumns {
			q = q.WhereOr("(? != '' AND ? NOT LIKE ?)", bun.Ident(col), bun.Ident(col), pattern)
		}
		return q
	})

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count plaintext leaks: %w", err)
	}

	return count, nil
}

func (r *employeeDB) ProvisionsByEmployee(ctx context.Context, employeeID string) ([]AccrualProvision, error) {
	var provisions []AccrualProvision
	err := r.db.NewSelect().
		Model(&provisions).
		Where("employee_id = ?", employeeID).
		Order("created_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("provisions for employee %s: %w", employeeID, err)
	}

	return provisions, nil
}

func (r *employeeDB) UpdateProvisionAmount(ctx context.Context, provisionID, amount string) error {
	res, err := r.db.NewUpdate().
		Model((*AccrualProvision)(nil)).
		Set("amount = ?", amount).
		Set("updated_at = ?", r.clock.Now().UTC()).
		Where("id = ?", provisionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update provision %s: %w", provisionID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: provision %s", ErrNotFound, provisionID)
	}

	return nil
}
