package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
	"github.com/nominahr/pg-hr-automation/internal/jobsdb"
)

// IdentityProcessor provisions a platform login identity for an employee:
// it finds or creates the user account behind the employee's email, guards
// against cross-employer account collisions, grants baseline company,
// application and role memberships, and links the employee to the account.
// Every step is check-then-create-or-reactivate, so a retried job picks up
// where a crashed attempt stopped.
type IdentityProcessor struct {
	conf      *Config
	employees hrdb.EmployeeDB
	identity  hrdb.IdentityDB
	directory Directory
	codec     SensitiveCodec
	log       zerolog.Logger
}

func NewIdentityProcessor(
	conf *Config,
	employees hrdb.EmployeeDB,
	identity hrdb.IdentityDB,
	directory Directory,
	codec SensitiveCodec,
	log zerolog.Logger,
) *IdentityProcessor {
	return &IdentityProcessor{
		conf:      conf,
		employees: employees,
		identity:  identity,
		directory: directory,
		codec:     codec,
		log:       log,
	}
}

func (p *IdentityProcessor) Queue() jobsdb.Queue {
	return jobsdb.QueueIdentity
}

func (p *IdentityProcessor) BatchSize() int {
	return p.conf.IdentityBatchSize
}

func (p *IdentityProcessor) Process(ctx context.Context, job jobsdb.Job) error {
	emp, err := p.employees.Get(ctx, job.EmployeeID)
	if err != nil {
		if errors.Is(err, hrdb.ErrNotFound) {
			return terminalf(jobsdb.ErrorFatal, "employee %s no longer exists", job.EmployeeID)
		}
		return err
	}

	// Inactive or already linked employees are a no-op success, not a
	// failure: the condition that queued the job resolved on its own.
	if !emp.Active || emp.UserAccountID != nil {
		return nil
	}

	email, err := p.readField(emp.Email)
	if err != nil {
		return err
	}
	firstName, err := p.readField(emp.FirstName)
	if err != nil {
		return err
	}
	surname, err := p.readField(emp.LastName1)
	if err != nil {
		return err
	}
	if email == "" || firstName == "" || surname == "" {
		return terminalf(jobsdb.ErrorFatal, "employee %s is missing email, first name or first surname", emp.ID)
	}

	app, role, err := p.resolveTarget(ctx)
	if err != nil {
		return err
	}

	user, err := p.identity.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, hrdb.ErrNotFound):
		user, err = p.identity.CreateUser(ctx, firstName, surname, email)
		if err != nil {
			return err
		}
		p.log.Info().
			Str("employee_id", emp.ID).
			Str("user_account_id", user.ID).
			Msg("created user account")
	case err != nil:
		return err
	default:
		if err := p.checkCollision(ctx, emp, user); err != nil {
			return err
		}
	}

	if err := p.identity.EnsureCompanyMembership(ctx, user.ID, emp.CompanyID); err != nil {
		return err
	}
	if err := p.identity.EnsureApplicationMembership(ctx, user.ID, app.ID); err != nil {
		return err
	}
	if err := p.identity.EnsureRoleAssignment(ctx, user.ID, role.ID, emp.CompanyID, app.ID); err != nil {
		return err
	}

	if err := p.employees.LinkUserAccount(ctx, emp.ID, user.ID); err != nil {
		return err
	}

	p.log.Info().
		Str("employee_id", emp.ID).
		Str("user_account_id", user.ID).
		Str("company_id", emp.CompanyID).
		Msg("identity provisioned")

	return nil
}

func (p *IdentityProcessor) resolveTarget(ctx context.Context) (*hrdb.Application, *hrdb.ApplicationRole, error) {
	app, err := p.directory.ResolveApplication(ctx, p.conf.ApplicationCode)
	if err != nil {
		if errors.Is(err, hrdb.ErrNotFound) {
			return nil, nil, terminalf(jobsdb.ErrorConfig, "application %q is not configured", p.conf.ApplicationCode)
		}
		return nil, nil, err
	}
	if !app.Active {
		return nil, nil, terminalf(jobsdb.ErrorConfig, "application %q is inactive", p.conf.ApplicationCode)
	}

	role, err := p.directory.DefaultEmployeeRole(ctx, app.ID)
	if err != nil {
		if errors.Is(err, hrdb.ErrNotFound) {
			return nil, nil, terminalf(jobsdb.ErrorConfig, "application %q has no default employee role", p.conf.ApplicationCode)
		}
		return nil, nil, err
	}
	if !role.Active {
		return nil, nil, terminalf(jobsdb.ErrorConfig, "default employee role %q is inactive", role.Code)
	}

	return app, role, nil
}

// checkCollision guards reuse of an existing account: another employee may
// already be linked to it. Same-employer links with matching identity
// hashes are fine (the same person holds several contracts); anything else
// needs manual reconciliation.
func (p *IdentityProcessor) checkCollision(ctx context.Context, emp *hrdb.Employee, user *hrdb.UserAccount) error {
	other, err := p.identity.LinkedEmployee(ctx, user.ID, emp.ID)
	if err != nil {
		if errors.Is(err, hrdb.ErrNotFound) {
			return nil
		}
		return err
	}

	if other.CompanyID != emp.CompanyID {
		return terminalf(jobsdb.ErrorDuplicate,
			"account is already linked to employee %s of another employer", other.ID)
	}

	mine, err := p.identityHash(emp)
	if err != nil {
		return err
	}
	theirs, err := p.identityHash(other)
	if err != nil {
		return err
	}
	if mine != "" && theirs != "" && mine != theirs {
		return terminalf(jobsdb.ErrorDuplicate,
			"identity hash mismatch with employee %s on the same account", other.ID)
	}

	return nil
}

// readField reads a PII value that may be stored either plaintext or
// encrypted, returning its trimmed plaintext.
func (p *IdentityProcessor) readField(value string) (string, error) {
	if p.codec.IsEncrypted(value) {
		plain, err := p.codec.Decrypt(value)
		if err != nil {
			return "", fmt.Errorf("decrypt identity field: %w", err)
		}
		return strings.TrimSpace(plain), nil
	}
	return strings.TrimSpace(value), nil
}

func (p *IdentityProcessor) identityHash(emp *hrdb.Employee) (string, error) {
	if emp.NationalIDHash != nil && *emp.NationalIDHash != "" {
		return *emp.NationalIDHash, nil
	}

	nationalID, err := p.readField(emp.NationalID)
	if err != nil {
		return "", err
	}
	if nationalID == "" {
		return "", nil
	}

	return p.codec.Hash(nationalID), nil
}
