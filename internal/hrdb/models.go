package hrdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Employee is the HR record the automation worker mutates. PII columns are
// text so they can hold either plaintext or a marked ciphertext; the
// surrounding CRUD system owns everything else about the row.
type Employee struct {
	bun.BaseModel `bun:"table:employees"`

	ID            string  `bun:"id,pk"`
	CompanyID     string  `bun:"company_id,notnull"`
	Active        bool    `bun:"active,notnull"`
	UserAccountID *string `bun:"user_account_id"`

	FirstName   string `bun:"first_name,notnull"`
	LastName1   string `bun:"last_name_1,notnull"`
	LastName2   string `bun:"last_name_2,notnull"`
	NationalID  string `bun:"national_id,notnull"`
	Email       string `bun:"email,notnull"`
	Phone       string `bun:"phone,notnull"`
	Address     string `bun:"address,notnull"`
	BaseSalary  string `bun:"base_salary,notnull"`
	BonusSalary string `bun:"bonus_salary,notnull"`

	NationalIDHash    *string    `bun:"national_id_hash"`
	EmailHash         *string    `bun:"email_hash"`
	DataEncrypted     bool       `bun:"data_encrypted,notnull"`
	EncryptionVersion *string    `bun:"encryption_version"`
	EncryptedAt       *time.Time `bun:"encrypted_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PII returns pointers to every field covered by encryption at rest, so a
// processor can rewrite them in place.
func (e *Employee) PII() []*string {
	return []*string{
		&e.FirstName,
		&e.LastName1,
		&e.LastName2,
		&e.NationalID,
		&e.Email,
		&e.Phone,
		&e.Address,
		&e.BaseSalary,
		&e.BonusSalary,
	}
}

type UserAccount struct {
	bun.BaseModel `bun:"table:user_accounts"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type Application struct {
	bun.BaseModel `bun:"table:applications"`

	ID     string `bun:"id,pk"`
	Code   string `bun:"code,notnull"`
	Name   string `bun:"name,notnull"`
	Active bool   `bun:"active,notnull"`
}

type ApplicationRole struct {
	bun.BaseModel `bun:"table:application_roles"`

	ID                  string `bun:"id,pk"`
	ApplicationID       string `bun:"application_id,notnull"`
	Code                string `bun:"code,notnull"`
	Active              bool   `bun:"active,notnull"`
	DefaultForEmployees bool   `bun:"default_for_employees,notnull"`
}

type CompanyMembership struct {
	bun.BaseModel `bun:"table:company_memberships"`

	ID            string    `bun:"id,pk"`
	UserAccountID string    `bun:"user_account_id,notnull"`
	CompanyID     string    `bun:"company_id,notnull"`
	Active        bool      `bun:"active,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type ApplicationMembership struct {
	bun.BaseModel `bun:"table:application_memberships"`

	ID            string    `bun:"id,pk"`
	UserAccountID string    `bun:"user_account_id,notnull"`
	ApplicationID string    `bun:"application_id,notnull"`
	Active        bool      `bun:"active,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type RoleAssignment struct {
	bun.BaseModel `bun:"table:role_assignments"`

	ID            string    `bun:"id,pk"`
	UserAccountID string    `bun:"user_account_id,notnull"`
	RoleID        string    `bun:"role_id,notnull"`
	CompanyID     string    `bun:"company_id,notnull"`
	ApplicationID string    `bun:"application_id,notnull"`
	Active        bool      `bun:"active,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// AccrualProvision is a benefit-accrual record owned by an employee; its
// amount participates in encryption at rest alongside the employee's PII.
type AccrualProvision struct {
	bun.BaseModel `bun:"table:accrual_provisions"`

	ID         string    `bun:"id,pk"`
	EmployeeID string    `bun:"employee_id,notnull"`
	Concept    string    `bun:"concept,notnull"`
	Amount     string    `bun:"amount,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func touchOnInsert(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func (u *UserAccount) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		touchOnInsert(&u.CreatedAt, &u.UpdatedAt)
	}
	return nil
}

func (e *Employee) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		touchOnInsert(&e.CreatedAt, &e.UpdatedAt)
	}
	return nil
}
