package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// EncryptionProcessor migrates an employee record to the encrypted-at-rest
// representation: every configured PII field is encrypted unless it already
// carries the ciphertext marker, lookup hashes are recomputed from the
// plaintext, dependent accrual provisions get the same treatment, and the
// employee is stamped with the scheme version. Re-running it on an already
// encrypted employee changes nothing.
type EncryptionProcessor struct {
	conf      *Config
	employees hrdb.EmployeeDB
	codec     SensitiveCodec
	clock     clockwork.Clock
	log       zerolog.Logger
}

func NewEncryptionProcessor(
	conf *Config,
	employees hrdb.EmployeeDB,
	codec SensitiveCodec,
	clock clockwork.Clock,
	log zerolog.Logger,
) *EncryptionProcessor {
	return &EncryptionProcessor{
		conf:      conf,
		employees: employees,
		codec:     codec,
		clock:     clock,
		log:       log,
	}
}

func (p *EncryptionProcessor) Queue() jobsdb.Queue {
	return jobsdb.QueueEncryption
}

func (p *EncryptionProcessor) BatchSize() int {
	return p.conf.EncryptionBatchSize
}

func (p *EncryptionProcessor) Process(ctx context.Context, job jobsdb.Job) error {
	emp, err := p.employees.Get(ctx, job.EmployeeID)
	if err != nil {
		if errors.Is(err, hrdb.ErrNotFound) {
			return terminalf(jobsdb.ErrorFatal, "employee %s no longer exists", job.EmployeeID)
		}
		return err
	}

	// Plaintext is needed for the lookup hashes before the fields are
	// sealed away.
	email, err := p.codec.Decrypt(emp.Email)
	if err != nil {
		return fmt.Errorf("read email of employee %s: %w", emp.ID, err)
	}
	nationalID, err := p.codec.Decrypt(emp.NationalID)
	if err != nil {
		return fmt.Errorf("read national id of employee %s: %w", emp.ID, err)
	}

	if err := p.encryptProvisions(ctx, emp.ID); err != nil {
		return err
	}

	changed := false
	for _, field := range emp.PII() {
		if *field == "" || p.codec.IsEncrypted(*field) {
			continue
		}
		sealed, err := p.codec.Encrypt(*field)
		if err != nil {
			return fmt.Errorf("encrypt field of employee %s: %w", emp.ID, err)
		}
		*field = sealed
		changed = true
	}

	// Idempotency: a second pass over an already encrypted employee must
	// leave the flag, version and timestamp untouched.
	if !changed && emp.DataEncrypted {
		return nil
	}

	if nationalID != "" {
		h := p.codec.Hash(nationalID)
		emp.NationalIDHash = &h
	}
	if email != "" {
		h := p.codec.Hash(email)
		emp.EmailHash = &h
	}

	version := p.codec.SchemeVersion()
	now := p.clock.Now().UTC()
	emp.DataEncrypted = true
	emp.EncryptionVersion = &version
	emp.EncryptedAt = &now

	if err := p.employees.SaveEncrypted(ctx, emp); err != nil {
		return err
	}

	p.log.Info().
		Str("employee_id", emp.ID).
		Str("scheme_version", version).
		Msg("employee data encrypted at rest")

	return nil
}

func (p *EncryptionProcessor) encryptProvisions(ctx context.Context, employeeID string) error {
	provisions, err := p.employees.ProvisionsByEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	for _, provision := range provisions {
		if provision.Amount == "" || p.codec.IsEncrypted(provision.Amount) {
			continue
		}
		sealed, err := p.codec.Encrypt(provision.Amount)
		if err != nil {
			return fmt.Errorf("encrypt provision %s: %w", provision.ID, err)
		}
		if err := p.employees.UpdateProvisionAmount(ctx, provision.ID, sealed); err != nil {
			return err
		}
	}

	return nil
}
