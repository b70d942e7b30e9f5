package hrdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// IdentityDB covers platform user accounts and their memberships. All the
// Ensure* operations are find-or-create-or-reactivate upserts keyed on the
// natural unique index, so repeating them is a no-op.
type IdentityDB interface {
	// FindUserByEmail looks a user account up by normalized email.
	FindUserByEmail(ctx context.Context, email string) (*UserAccount, error)

	CreateUser(ctx context.Context, firstName, lastName, email string) (*UserAccount, error)

	// LinkedEmployee returns the employee already linked to the account,
	// excluding the given employee id. ErrNotFound when no other employee
	// holds the link.
	LinkedEmployee(ctx context.Context, userAccountID, excludeEmployeeID string) (*Employee, error)

	EnsureCompanyMembership(ctx context.Context, userAccountID, companyID string) error
	EnsureApplicationMembership(ctx context.Context, userAccountID, applicationID string) error
	EnsureRoleAssignment(ctx context.Context, userAccountID, roleID, companyID, applicationID string) error
}

type identityDB struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewIdentity(db *bun.DB, clock clockwork.Clock) IdentityDB {
	return &identityDB{
		db:    db,
		clock: clock,
	}
}

// NormalizeEmail is the canonical form used for account lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *identityDB) FindUserByEmail(ctx context.Context, email string) (*UserAccount, error) {
	u := new(UserAccount)
	err := r.db.NewSelect().
		Model(u).
		Where("lower(email) = ?", NormalizeEmail(email)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user account for email", ErrNotFound)
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return u, nil
}

func (r *identityDB) CreateUser(ctx context.Context, firstName, lastName, email string) (*UserAccount, error) {
	now := r.clock.Now().UTC()
	u := &UserAccount{
		ID:        ulid.Make().String(),
		Email:     NormalizeEmail(email),
		FirstName: firstName,
		LastName:  lastName,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.db.NewInsert().Model(u).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create user account: %w", err)
	}

	return u, nil
}

func (r *identityDB) LinkedEmployee(ctx context.Context, userAccountID, excludeEmployeeID string) (*Employee, error) {
	e := new(Employee)
	err := r.db.NewSelect().
		Model(e).
		Where("user_account_id = ?", userAccountID).
		Where("id != ?", excludeEmployeeID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no employee linked to account %s", ErrNotFound, userAccountID)
		}
		return nil, fmt.Errorf("linked employee for account %s: %w", userAccountID, err)
	}

	return e, nil
}

func (r *identityDB) EnsureCompanyMembership(ctx context.Context, userAccountID, companyID string) error {
	now := r.clock.Now().UTC()
	m := &CompanyMembership{
		ID:            ulid.Make().String(),
		UserAccountID: userAccountID,
		CompanyID:     companyID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.db.NewInsert().
		Model(m).
		On("CONFLICT (user_account_id, company_id) DO UPDATE").
		Set("active = TRUE").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure company membership %s/%s: %w", userAccountID, companyID, err)
	}

	return nil
}

func (r *identityDB) EnsureApplicationMembership(ctx context.Context, userAccountID, applicationID string) error {
	now := r.clock.Now().UTC()
	m := &ApplicationMembership{
		ID:            ulid.Make().String(),
		UserAccountID: userAccountID,
		ApplicationID: applicationID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.db.NewInsert().
		Model(m).
		On("CONFLICT (user_account_id, application_id) DO UPDATE").
		Set("active = TRUE").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure application membership %s/%s: %w", userAccountID, applicationID, err)
	}

	return nil
}

func (r *identityDB) EnsureRoleAssignment(ctx context.Context, userAccountID, roleID, companyID, applicationID string) error {
	now := r.clock.Now().UTC()
	a := &RoleAssignment{
		ID:            ulid.Make().String(),
		UserAccountID: userAccountID,
		RoleID:        roleID,
		CompanyID:     companyID,
		ApplicationID: applicationID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.db.NewInsert().
		Model(a).
		On("CONFLICT (user_account_id, role_id, company_id, application_id) DO UPDATE").
		Set("active = TRUE").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure role assignment %s/%s: %w", userAccountID, roleID, err)
	}

	return nil
}
